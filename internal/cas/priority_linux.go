//go:build linux

// Package cas — priority_linux.go
//
// Best-effort scheduling priority hint for the safety kernel: CAS is the
// plant's highest-priority task and benefits from running ahead of the
// other 10Hz workers under load. A one-shot, non-fatal OS hardening step
// performed at startup: warn and continue if the syscall fails rather
// than treating it as a startup-blocking error.
package cas

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// applyPriorityHint lowers this process's niceness by a few points so the
// CAS goroutine's host thread is scheduled preferentially. Failure (e.g.
// insufficient privilege) is logged and ignored — CAS still runs correctly,
// just without the scheduling edge.
func applyPriorityHint(log *zap.Logger) {
	const wantNice = -5
	if err := unix.Setpriority(unix.PRIO_PROCESS, os.Getpid(), wantNice); err != nil {
		log.Warn("could not raise scheduling priority, continuing at default priority",
			zap.Error(err), zap.Int("requested_nice", wantNice))
	}
}
