// Package periodic — ticker.go
//
// Drift-free periodic execution for the plant's worker tasks: next tick is
// previous-tick plus period, not sleep-from-now, so ticks do not
// accumulate drift under transient scheduling delay. A single reusable
// driver so every task package doesn't reimplement the loop.
package periodic

import (
	"context"
	"time"
)

// Run calls fn once per period until ctx is cancelled. It uses
// time.Ticker, which already fires at period-aligned boundaries rather
// than period-after-last-fire, so ticks do not accumulate drift under
// transient scheduling delay.
func Run(ctx context.Context, period time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
