// Package commandlogic — task.go
//
// CommandLogic: the mode supervisor. Reconciles the operator command, the
// fault latch, and the snapshot into the authoritative VehicleState, and
// owns rearm handling including the collision back-off maneuver.
package commandlogic

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/periodic"
	"github.com/haulctl/truckctl/internal/safety"
	"github.com/haulctl/truckctl/internal/storage"
)

// Period is CommandLogic's fixed rate (100ms / 10Hz).
const Period = 100 * time.Millisecond

// backoffPeriod is how often the back-off maneuver re-asserts its actuator
// command. It must be shorter than NavigationController's period (100ms)
// so the brake command is not overwritten-through by a stale controller
// tick, the same ordering CAS uses against the controller.
const backoffPeriod = 50 * time.Millisecond

// backoffDuration is the collision back-off brake phase length.
const backoffDuration = 2 * time.Second

// Task is the mode-supervisor task.
type Task struct {
	h         *hub.DataHub
	events    *hub.Events
	validator *safety.Validator
	db        *storage.DB
	metrics   *observability.Metrics
	log       *zap.Logger

	mode Mode
}

// New constructs a CommandLogic task, initial mode MANUAL_OK. db may be nil,
// in which case accepted transitions are validated but not appended to the
// audit ledger (used by the scenario runner, which has no BoltDB).
func New(h *hub.DataHub, events *hub.Events, validator *safety.Validator, db *storage.DB, metrics *observability.Metrics, log *zap.Logger) *Task {
	return &Task{h: h, events: events, validator: validator, db: db, metrics: metrics, log: log, mode: ModeManualOK}
}

// Run drives the task at Period until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	periodic.Run(ctx, Period, t.tick)
}

func (t *Task) tick(ctx context.Context) {
	cmd := t.h.GetOperatorCommand()
	active, code := t.events.State()
	fromMode := t.mode

	// Rearm is a transient pulse: consume it unconditionally, regardless of
	// whether a fault is actually latched, so a stale true bit can never be
	// re-applied on a later tick (e.g. against a fault that hasn't latched
	// yet).
	rearmRequested := cmd.Rearm
	if rearmRequested {
		cmd.Rearm = false
		t.h.SetOperatorCommand(cmd)
	}

	backoffComplete := true
	clearingFault := false

	switch {
	case rearmRequested && active:
		clearingFault = true
		if code == hub.FaultObstacle {
			backoffComplete = t.runBackoff(ctx)
		}
		if cmd.RequestManual {
			t.mode = ModeManualOK
		} else {
			// No explicit manual request after rearm: fall through to the
			// normal auto/manual evaluation below using the (now cleared)
			// fault state, preserving whichever non-faulted mode is implied
			// by the remaining operator bits.
			t.mode = t.resolveRequestedMode(cmd, ModeManualOK)
		}
		t.metrics.RearmsTotal.Inc()

	case active:
		t.mode = ModeFaulted

	default:
		t.mode = t.resolveRequestedMode(cmd, t.mode)
	}

	if t.commitMode(fromMode, code, backoffComplete) && clearingFault {
		t.events.Reset()
	}
}

// resolveRequestedMode applies "last request wins, ties resolved in favour
// of manual". fallback is returned when neither request bit is set.
func (t *Task) resolveRequestedMode(cmd hub.OperatorCommand, fallback Mode) Mode {
	switch {
	case cmd.RequestManual:
		return ModeManualOK
	case cmd.RequestAutomatic:
		return ModeAutoOK
	default:
		return fallback
	}
}

// runBackoff executes the 2-second collision back-off maneuver: brake at
// -50 for backoffDuration, then one zero/zero command, before the caller
// clears the latch. Returns false if ctx is cancelled before the maneuver
// completes.
func (t *Task) runBackoff(ctx context.Context) bool {
	t.log.Warn("executing collision back-off maneuver", zap.Duration("duration", backoffDuration))

	deadline := time.Now().Add(backoffDuration)
	ticker := time.NewTicker(backoffPeriod)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		t.h.SetActuator(hub.ActuatorCommand{Throttle: -50, Heading: 0})
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	t.h.SetActuator(hub.ActuatorCommand{Throttle: 0, Heading: 0})
	return true
}

// commitMode publishes the current mode to the DataHub's VehicleState.
// Every actual transition (from != t.mode) is checked by safety.Validator
// before it is published; a rejected transition is not committed, mode
// reverts to from, and the caller must not treat it as applied (e.g. must
// not clear the fault latch). Accepted transitions are appended to the
// audit ledger. Returns whether the (possibly no-op) commit succeeded.
func (t *Task) commitMode(from Mode, latchedCode int, backoffComplete bool) bool {
	state := hub.VehicleState{
		Fault:     t.mode == ModeFaulted,
		Automatic: t.mode == ModeAutoOK,
	}

	if from == t.mode {
		t.h.SetState(state)
		return true
	}

	decision, err := t.validator.ValidateTransition(
		from == ModeFaulted, state.Fault,
		from == ModeAutoOK, state.Automatic,
		latchedCode, backoffComplete, time.Now(),
	)
	if err != nil {
		t.log.Error("vehicle state transition rejected by safety validator", zap.Error(err))
		t.mode = from
		return false
	}

	t.h.SetState(state)
	t.metrics.StateTransitionsTotal.WithLabelValues(from.String(), t.mode.String()).Inc()

	if t.db != nil {
		writeStart := time.Now()
		err := t.db.AppendLedger(*decision)
		t.metrics.StorageWriteLatency.Observe(time.Since(writeStart).Seconds())
		if err != nil {
			t.log.Error("ledger append failed", zap.Error(err))
		} else {
			t.metrics.StorageLedgerEntries.Inc()
		}
	}

	return true
}
