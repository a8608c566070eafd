package gateway

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
)

type fakeDriver struct {
	mu sync.Mutex

	lastThrottle, lastHeading int
	lastManual, lastFault     bool
	setActuatorsCalls         int
	publishCalls              int
}

func (f *fakeDriver) SetActuators(ctx context.Context, throttlePct, headingDeg int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastThrottle, f.lastHeading = throttlePct, headingDeg
	f.setActuatorsCalls++
	return nil
}

func (f *fakeDriver) PublishSystemState(ctx context.Context, manual, fault bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastManual, f.lastFault = manual, fault
	f.publishCalls++
	return nil
}

func newTestTask() (*Task, *hub.DataHub, *fakeDriver) {
	h := hub.New()
	ev := hub.NewEvents()
	d := &fakeDriver{}
	m := observability.NewMetrics()
	return New(h, ev, d, m, zap.NewNop()), h, d
}

func TestTickForwardsActuatorCommand(t *testing.T) {
	task, h, d := newTestTask()
	h.SetActuator(hub.ActuatorCommand{Throttle: 42, Heading: 200})

	task.tick(context.Background())

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastThrottle != 42 || d.lastHeading != 200 {
		t.Fatalf("driver got (%d, %d), want (42, 200)", d.lastThrottle, d.lastHeading)
	}
}

func TestTickPublishesManualFaultFromState(t *testing.T) {
	task, h, d := newTestTask()
	h.SetState(hub.VehicleState{Automatic: true, Fault: false})

	task.tick(context.Background())

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastManual {
		t.Fatal("automatic mode should publish manual=false")
	}
	if d.lastFault {
		t.Fatal("no-fault state should publish fault=false")
	}
}

func TestShutdownPublishesZeroThrottleAndFault(t *testing.T) {
	task, h, d := newTestTask()
	h.PublishSensor(hub.SensorFrame{Heading: 77})

	task.shutdown()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastThrottle != 0 || d.lastHeading != 77 {
		t.Fatalf("shutdown actuator = (%d, %d), want (0, 77)", d.lastThrottle, d.lastHeading)
	}
	if !d.lastManual || !d.lastFault {
		t.Fatal("shutdown should publish manual=true, fault=true")
	}
}
