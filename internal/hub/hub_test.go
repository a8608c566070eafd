package hub

import (
	"sync"
	"testing"
	"time"
)

func TestPublishThenSnapshot(t *testing.T) {
	h := New()
	f := SensorFrame{ID: 1, X: 10, Y: 20, Heading: 90}
	h.PublishSensor(f)

	got := h.ReadSnapshot()
	if got != f {
		t.Fatalf("ReadSnapshot() = %+v, want %+v", got, f)
	}
}

func TestSnapshotStableUntilNextPublish(t *testing.T) {
	h := New()
	h.PublishSensor(SensorFrame{ID: 1})
	first := h.ReadSnapshot()

	for i := 0; i < 5; i++ {
		if got := h.ReadSnapshot(); got != first {
			t.Fatalf("snapshot changed without a publish: got %+v", got)
		}
	}

	h.PublishSensor(SensorFrame{ID: 2})
	if got := h.ReadSnapshot(); got.ID != 2 {
		t.Fatalf("snapshot did not reflect new publish: got %+v", got)
	}
}

func TestHistoryLenBounded(t *testing.T) {
	h := New()
	for i := 0; i < HistoryCapacity*3; i++ {
		h.PublishSensor(SensorFrame{ID: i})
		if n := h.HistoryLen(); n > HistoryCapacity {
			t.Fatalf("historyLen() = %d, want <= %d", n, HistoryCapacity)
		}
	}
	if n := h.HistoryLen(); n != HistoryCapacity {
		t.Fatalf("historyLen() = %d, want %d after overflow", n, HistoryCapacity)
	}
}

func TestConsumeSensorFIFO(t *testing.T) {
	h := New()
	h.PublishSensor(SensorFrame{ID: 1})
	h.PublishSensor(SensorFrame{ID: 2})

	if f := h.ConsumeSensor(); f.ID != 1 {
		t.Fatalf("ConsumeSensor() = ID %d, want 1", f.ID)
	}
	if f := h.ConsumeSensor(); f.ID != 2 {
		t.Fatalf("ConsumeSensor() = ID %d, want 2", f.ID)
	}
}

func TestConsumeSensorBlocksUntilPublish(t *testing.T) {
	h := New()
	done := make(chan SensorFrame, 1)
	go func() {
		done <- h.ConsumeSensor()
	}()

	select {
	case <-done:
		t.Fatal("ConsumeSensor returned before any publish")
	case <-time.After(50 * time.Millisecond):
	}

	h.PublishSensor(SensorFrame{ID: 42})

	select {
	case f := <-done:
		if f.ID != 42 {
			t.Fatalf("ConsumeSensor() = ID %d, want 42", f.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeSensor did not unblock after publish")
	}
}

func TestOperatorCommandRoundTrip(t *testing.T) {
	h := New()
	c := OperatorCommand{RequestAutomatic: true, Accelerate: true}
	h.SetOperatorCommand(c)
	if got := h.GetOperatorCommand(); got != c {
		t.Fatalf("GetOperatorCommand() = %+v, want %+v", got, c)
	}
}

func TestConcurrentPublishNeverTearsSnapshot(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h.PublishSensor(SensorFrame{ID: n, X: n, Y: n})
		}(i)
	}
	wg.Wait()

	got := h.ReadSnapshot()
	if got.ID != got.X || got.X != got.Y {
		t.Fatalf("torn snapshot: %+v", got)
	}
}

func TestEventsSignalIdempotent(t *testing.T) {
	e := NewEvents()
	e.Signal(FaultThermal)
	e.Signal(FaultElectrical)

	active, code := e.State()
	if !active || code != FaultThermal {
		t.Fatalf("State() = (%v, %d), want (true, %d)", active, code, FaultThermal)
	}
}

func TestEventsResetIdempotent(t *testing.T) {
	e := NewEvents()
	e.Signal(FaultHydraulic)
	e.Reset()
	e.Reset()

	active, code := e.State()
	if active || code != FaultNone {
		t.Fatalf("State() = (%v, %d), want (false, %d)", active, code, FaultNone)
	}
}

func TestEventsRemainsActiveUntilReset(t *testing.T) {
	e := NewEvents()
	e.Signal(FaultObstacle)

	for i := 0; i < 10; i++ {
		if !e.Active() {
			t.Fatal("latch deactivated without a Reset")
		}
	}
	e.Reset()
	if e.Active() {
		t.Fatal("latch still active after Reset")
	}
}
