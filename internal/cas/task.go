// Package cas — task.go
//
// CollisionAvoidance: the plant's safety kernel. Runs at the highest
// priority and frequency of any task, bypasses the controller's queued
// actuator command on an obstacle breach, and latches fault code 4. CAS
// never clears the latch, only CommandLogic's rearm handling does, after
// the back-off maneuver.
//
// The heading written on override is the vehicle's current heading, not a
// fixed value: overriding it to due-east on every brake event would be
// surprising and unsafe on an arbitrary heading.
package cas

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/periodic"
	"github.com/haulctl/truckctl/internal/safety"
	"github.com/haulctl/truckctl/internal/transport"
)

// Period is CAS's fixed rate (50ms / 20Hz, highest priority).
const Period = 50 * time.Millisecond

// SafeDistance is the obstacle-range threshold.
const SafeDistance = 10.0

// Task is the collision-avoidance safety kernel.
type Task struct {
	h       *hub.DataHub
	events  *hub.Events
	driver  transport.ActuatorPort
	metrics *observability.Metrics
	log     *zap.Logger
}

// New constructs the CAS task. driver is written to directly on an
// override, bypassing the actuation gateway's queued-command path, so the
// brake reaches the vehicle within one CAS period instead of waiting on
// the gateway's own (slower) tick.
func New(h *hub.DataHub, events *hub.Events, driver transport.ActuatorPort, metrics *observability.Metrics, log *zap.Logger) *Task {
	return &Task{h: h, events: events, driver: driver, metrics: metrics, log: log}
}

// Run drives the task at Period until ctx is cancelled. The best-effort
// scheduling priority hint (applyPriorityHint, in priority_linux.go) is applied
// once, synchronously, before entering the loop.
func (t *Task) Run(ctx context.Context) {
	applyPriorityHint(t.log)
	periodic.Run(ctx, Period, t.tick)
}

func (t *Task) tick(ctx context.Context) {
	snap := t.h.ReadSnapshot()

	if snap.LidarDistance >= SafeDistance {
		return
	}

	override := hub.ActuatorCommand{Throttle: -100, Heading: snap.Heading}
	if err := safety.ValidateActuatorCommand(override.Throttle, override.Heading); err != nil {
		t.log.Error("collision override failed bounds check", zap.Error(err))
		return
	}

	// Write straight through to the driver first: this is the fast path
	// that must land within one CAS period. The hub write that follows
	// keeps the gateway's own periodic republish from clobbering the
	// override with a stale queued command on its next tick.
	if err := t.driver.SetActuators(ctx, override.Throttle, override.Heading); err != nil {
		t.log.Error("direct collision-override actuator write failed", zap.Error(err))
	}
	t.h.SetActuator(override)
	t.metrics.CASOverridesTotal.Inc()

	if !t.events.Active() {
		t.log.Error("collision avoidance emergency brake",
			zap.Float64("lidar_distance_m", snap.LidarDistance),
			zap.Float64("safe_distance_m", SafeDistance))
		t.events.Signal(hub.FaultObstacle)
	}
}
