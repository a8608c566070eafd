// Package planner — task.go
//
// RoutePlanner: maintains an ordered waypoint queue and publishes the
// active NavigationObjective. Polls transport.RouteSource each tick (the
// wire-protocol driver or the file-based mission watcher in filesource.go
// can both satisfy it), advancing the queue as waypoints are reached.
package planner

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/periodic"
	"github.com/haulctl/truckctl/internal/transport"
)

// Period is RoutePlanner's fixed rate (100ms / 10Hz).
const Period = 100 * time.Millisecond

// ArrivalRadius is the waypoint pop threshold.
const ArrivalRadius = 5.0

// Task is the route-planning task.
type Task struct {
	h       *hub.DataHub
	source  transport.RouteSource
	metrics *observability.Metrics
	log     *zap.Logger

	queue []hub.Waypoint
}

// New constructs a RoutePlanner reading missions from source.
func New(h *hub.DataHub, source transport.RouteSource, metrics *observability.Metrics, log *zap.Logger) *Task {
	return &Task{h: h, source: source, metrics: metrics, log: log}
}

// Run drives the task at Period until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	periodic.Run(ctx, Period, t.tick)
}

func (t *Task) tick(ctx context.Context) {
	if msg, ok, err := t.source.PollNewRoute(ctx); err != nil {
		// Invalid mission: logged, queue untouched, planner continues with
		// the prior plan.
		t.log.Warn("route poll failed, retaining prior plan", zap.Error(err))
	} else if ok {
		t.queue = append([]hub.Waypoint(nil), msg.Route...)
		t.log.Info("route replaced", zap.Int("waypoint_count", len(t.queue)))
	}

	t.metrics.RouteQueueDepth.Set(float64(len(t.queue)))

	if len(t.queue) == 0 {
		t.h.SetObjective(hub.NavigationObjective{Active: false})
		return
	}

	snap := t.h.ReadSnapshot()
	head := t.queue[0]
	dist := math.Hypot(head.X-float64(snap.X), head.Y-float64(snap.Y))

	if dist < ArrivalRadius {
		t.queue = t.queue[1:]
		t.metrics.WaypointsReachedTotal.Inc()
		if len(t.queue) == 0 {
			t.h.SetObjective(hub.NavigationObjective{Active: false})
			return
		}
		head = t.queue[0]
	}

	t.h.SetObjective(hub.NavigationObjective{
		Active:         true,
		X:              head.X,
		Y:              head.Y,
		ReferenceSpeed: head.ReferenceSpeed,
	})
}
