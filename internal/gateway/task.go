// Package gateway — task.go
//
// ActuationGateway is the task that calls out through an ActuatorPort in
// normal operation (CAS writes the driver directly only for its emergency
// override): it drains DataHub's actuator command at a fixed rate and hands
// it to whatever driver is wired at startup, plus a periodic system-state
// telemetry publish.
package gateway

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

// Period is ActuationGateway's fixed rate (100ms / 10Hz, matching
// NavigationController so no actuator write is ever stale by more than one
// controller tick).
const Period = 100 * time.Millisecond

// Task is the actuation-gateway task.
type Task struct {
	h       *hub.DataHub
	events  *hub.Events
	driver  transport.ActuatorPort
	metrics *observability.Metrics
	log     *zap.Logger
}

// New constructs an ActuationGateway writing through driver.
func New(h *hub.DataHub, events *hub.Events, driver transport.ActuatorPort, metrics *observability.Metrics, log *zap.Logger) *Task {
	return &Task{h: h, events: events, driver: driver, metrics: metrics, log: log}
}

// Run drives the task at Period until ctx is cancelled, then performs the
// shutdown publish: a final zero-throttle command at the current heading
// plus fault=true, so a stopped agent never leaves the vehicle holding a
// stale throttle command.
func (t *Task) Run(ctx context.Context) {
	periodic.Run(ctx, Period, t.tick)
	t.shutdown()
}

func (t *Task) tick(ctx context.Context) {
	cmd := t.h.GetActuator()
	if err := safety.ValidateActuatorCommand(cmd.Throttle, cmd.Heading); err != nil {
		t.log.Error("queued actuator command failed bounds check, braking", zap.Error(err))
		snap := t.h.ReadSnapshot()
		cmd = hub.ActuatorCommand{Throttle: -100, Heading: snap.Heading}
	}
	if err := t.driver.SetActuators(ctx, cmd.Throttle, cmd.Heading); err != nil {
		t.log.Error("actuator write failed", zap.Error(err))
	}

	state := t.h.GetState()
	if err := t.driver.PublishSystemState(ctx, !state.Automatic, state.Fault); err != nil {
		t.log.Warn("system state publish failed", zap.Error(err))
	}

	active, code := t.events.State()
	if active {
		t.metrics.FaultLatchActive.Set(1)
	} else {
		t.metrics.FaultLatchActive.Set(0)
	}
	t.metrics.FaultLatchCode.Set(float64(code))
}

func (t *Task) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), Period)
	defer cancel()

	snap := t.h.ReadSnapshot()
	if err := t.driver.SetActuators(ctx, 0, snap.Heading); err != nil {
		t.log.Error("shutdown actuator write failed", zap.Error(err))
	}
	if err := t.driver.PublishSystemState(ctx, true, true); err != nil {
		t.log.Error("shutdown state publish failed", zap.Error(err))
	}
}
