package commandlogic

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/safety"
	"github.com/haulctl/truckctl/internal/storage"
)

func newTestTask() (*Task, *hub.DataHub, *hub.Events) {
	h := hub.New()
	ev := hub.NewEvents()
	v := safety.NewValidator(zap.NewNop())
	m := observability.NewMetrics()
	return New(h, ev, v, nil, m, zap.NewNop()), h, ev
}

func TestInitialModeIsManualOK(t *testing.T) {
	task, h, _ := newTestTask()
	task.tick(context.Background())
	if got := h.GetState(); got.Automatic || got.Fault {
		t.Fatalf("GetState() = %+v, want manual, no fault", got)
	}
	if task.mode != ModeManualOK {
		t.Fatalf("mode = %v, want MANUAL_OK", task.mode)
	}
}

func TestFaultLatchForcesFaultedMode(t *testing.T) {
	task, h, ev := newTestTask()
	ev.Signal(hub.FaultThermal)
	task.tick(context.Background())

	if got := h.GetState(); !got.Fault {
		t.Fatalf("GetState().Fault = false, want true")
	}
	if task.mode != ModeFaulted {
		t.Fatalf("mode = %v, want FAULTED", task.mode)
	}
}

func TestRearmNonCollisionClearsImmediately(t *testing.T) {
	task, h, ev := newTestTask()
	ev.Signal(hub.FaultElectrical)
	task.tick(context.Background())
	if !h.GetState().Fault {
		t.Fatal("expected fault before rearm")
	}

	h.SetOperatorCommand(hub.OperatorCommand{Rearm: true, RequestManual: true})
	task.tick(context.Background())

	if ev.Active() {
		t.Fatal("latch still active after non-collision rearm")
	}
	if got := h.GetState(); got.Fault {
		t.Fatalf("GetState().Fault = true after rearm, want false")
	}
}

func TestRearmCollisionRunsBackoffBeforeClearing(t *testing.T) {
	task, h, ev := newTestTask()
	ev.Signal(hub.FaultObstacle)
	task.tick(context.Background())

	h.SetOperatorCommand(hub.OperatorCommand{Rearm: true, RequestManual: true})

	start := time.Now()
	task.tick(context.Background())
	elapsed := time.Since(start)

	if elapsed < backoffDuration {
		t.Fatalf("rearm on collision fault returned after %v, want >= %v", elapsed, backoffDuration)
	}
	if ev.Active() {
		t.Fatal("latch still active after collision back-off completed")
	}
	final := h.GetActuator()
	if final.Throttle != 0 || final.Heading != 0 {
		t.Fatalf("final actuator command = %+v, want {0,0}", final)
	}
}

// TestRearmPulseIsConsumed covers the failure mode where a lingering
// Rearm bit auto-clears the very next fault to latch.
func TestRearmPulseIsConsumed(t *testing.T) {
	task, h, ev := newTestTask()
	ev.Signal(hub.FaultElectrical)
	task.tick(context.Background())

	h.SetOperatorCommand(hub.OperatorCommand{Rearm: true, RequestManual: true})
	task.tick(context.Background())
	if ev.Active() {
		t.Fatal("expected latch cleared after rearm")
	}
	if got := h.GetOperatorCommand(); got.Rearm {
		t.Fatal("Rearm bit still set in hub after being consumed")
	}

	ev.Signal(hub.FaultThermal)
	task.tick(context.Background())
	if !ev.Active() {
		t.Fatal("a fresh fault was auto-cleared by a stale rearm pulse")
	}
	if task.mode != ModeFaulted {
		t.Fatalf("mode = %v, want FAULTED", task.mode)
	}
}

// TestRearmWithNoActiveFaultIsNoop covers the c_rearme && e_defeito guard:
// a rearm pulse with nothing latched must not perturb the mode.
func TestRearmWithNoActiveFaultIsNoop(t *testing.T) {
	task, h, ev := newTestTask()
	h.SetOperatorCommand(hub.OperatorCommand{Rearm: true, RequestAutomatic: true})
	task.tick(context.Background())

	if ev.Active() {
		t.Fatal("no fault was latched, Active() should remain false")
	}
	if task.mode != ModeAutoOK {
		t.Fatalf("mode = %v, want AUTO_OK (rearm without a fault should not block the requested mode)", task.mode)
	}
	if got := h.GetOperatorCommand(); got.Rearm {
		t.Fatal("Rearm bit still set in hub after being consumed")
	}
}

// TestTransitionAppendsLedgerEntry covers wiring the audit ledger: the
// accepted manual->faulted->manual transitions must append Decisions to
// the ledger.
func TestTransitionAppendsLedgerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truckctl.db")
	db, err := storage.Open(path, 30)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := hub.New()
	ev := hub.NewEvents()
	v := safety.NewValidator(zap.NewNop())
	m := observability.NewMetrics()
	task := New(h, ev, v, db, m, zap.NewNop())

	ev.Signal(hub.FaultElectrical)
	task.tick(context.Background())

	h.SetOperatorCommand(hub.OperatorCommand{Rearm: true, RequestManual: true})
	task.tick(context.Background())

	entries, err := db.ReadLedger()
	if err != nil {
		t.Fatalf("ReadLedger: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one ledger entry after a fault-clearing transition")
	}
}

func TestManualWinsSimultaneousRequest(t *testing.T) {
	task, h, _ := newTestTask()
	h.SetOperatorCommand(hub.OperatorCommand{RequestAutomatic: true, RequestManual: true})
	task.tick(context.Background())

	if task.mode != ModeManualOK {
		t.Fatalf("mode = %v, want MANUAL_OK (manual wins ties)", task.mode)
	}
}

func TestLastRequestWins(t *testing.T) {
	task, h, _ := newTestTask()
	h.SetOperatorCommand(hub.OperatorCommand{RequestAutomatic: true})
	task.tick(context.Background())
	if task.mode != ModeAutoOK {
		t.Fatalf("mode = %v, want AUTO_OK", task.mode)
	}

	h.SetOperatorCommand(hub.OperatorCommand{RequestManual: true})
	task.tick(context.Background())
	if task.mode != ModeManualOK {
		t.Fatalf("mode = %v, want MANUAL_OK", task.mode)
	}
}
