//go:build !linux

package cas

import "go.uber.org/zap"

// applyPriorityHint is a no-op on non-Linux targets; the x/sys/unix
// priority call is Linux-specific.
func applyPriorityHint(log *zap.Logger) {}
