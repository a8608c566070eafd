package navigation

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
)

func newTestController() (*Controller, *hub.DataHub) {
	h := hub.New()
	m := observability.NewMetrics()
	return New(h, m, zap.NewNop()), h
}

func TestFaultModeBrakesAndHoldsHeading(t *testing.T) {
	c, h := newTestController()
	h.SetState(hub.VehicleState{Fault: true})
	h.PublishSensor(hub.SensorFrame{Heading: 270})

	c.tick(context.Background())

	got := h.GetActuator()
	if got.Throttle != -100 || got.Heading != 270 {
		t.Fatalf("GetActuator() = %+v, want {-100, 270}", got)
	}
}

// TestManualModeUsesAbsoluteHeading flags the resolved Open Question: a
// steer-right command is an absolute heading of 45, not an offset relative
// to the truck's current heading. A reader expecting "turn 45 degrees from
// wherever I'm currently pointed" will find this test's assertion
// surprising — that is the point.
func TestManualModeUsesAbsoluteHeading(t *testing.T) {
	c, h := newTestController()
	h.PublishSensor(hub.SensorFrame{Heading: 200, Speed: 3})
	h.SetOperatorCommand(hub.OperatorCommand{SteerRight: true, Accelerate: true})

	c.tick(context.Background())

	got := h.GetActuator()
	if got.Heading != 45 {
		t.Fatalf("GetActuator().Heading = %d, want 45 (absolute, not 200+45)", got.Heading)
	}
	if got.Throttle != 50 {
		t.Fatalf("GetActuator().Throttle = %d, want 50", got.Throttle)
	}
}

func TestManualModeSteerLeftIsAbsoluteNegative(t *testing.T) {
	c, h := newTestController()
	h.PublishSensor(hub.SensorFrame{Heading: 90})
	h.SetOperatorCommand(hub.OperatorCommand{SteerLeft: true})

	c.tick(context.Background())

	got := h.GetActuator()
	if got.Heading != 360-45 {
		t.Fatalf("GetActuator().Heading = %d, want %d (normalise360(-45))", got.Heading, 360-45)
	}
}

func TestManualModeBumplessTransferSnapsSetpoints(t *testing.T) {
	c, h := newTestController()
	h.PublishSensor(hub.SensorFrame{Heading: 123, Speed: 7})
	h.SetOperatorCommand(hub.OperatorCommand{})

	c.tick(context.Background())

	if c.setpointSpeed != 7 || c.setpointHeading != 123 {
		t.Fatalf("setpoints = (%v, %v), want (7, 123)", c.setpointSpeed, c.setpointHeading)
	}
	if c.integratorV != 0 {
		t.Fatalf("integratorV = %v, want 0 after manual tick", c.integratorV)
	}
}

func TestAutoIdleBrakesWhenNoObjective(t *testing.T) {
	c, h := newTestController()
	h.SetState(hub.VehicleState{Automatic: true})
	h.PublishSensor(hub.SensorFrame{Heading: 10})

	c.tick(context.Background())

	got := h.GetActuator()
	if got.Throttle != -100 || got.Heading != 10 {
		t.Fatalf("GetActuator() = %+v, want {-100, 10}", got)
	}
}

func TestAutoTrackingSteersTowardWaypoint(t *testing.T) {
	c, h := newTestController()
	h.SetState(hub.VehicleState{Automatic: true})
	h.PublishSensor(hub.SensorFrame{X: 0, Y: 0, Heading: 0, Speed: 5})
	h.SetObjective(hub.NavigationObjective{Active: true, X: 100, Y: 0, ReferenceSpeed: 10})

	c.tick(context.Background())

	got := h.GetActuator()
	// Target is due east of a truck already heading east: steering command
	// should stay close to 0, not swing hard in either direction.
	if got.Heading > 10 && got.Heading < 350 {
		t.Fatalf("GetActuator().Heading = %d, want near 0 for a target straight ahead", got.Heading)
	}
}

func TestAutoTrackingAppliesCorneringSlowdown(t *testing.T) {
	c, h := newTestController()
	h.SetState(hub.VehicleState{Automatic: true})
	// Target is directly behind the truck: heading error is ~180 degrees,
	// well past the 10-degree cornering threshold.
	h.PublishSensor(hub.SensorFrame{X: 0, Y: 0, Heading: 0, Speed: 5})
	h.SetObjective(hub.NavigationObjective{Active: true, X: -100, Y: 0, ReferenceSpeed: 20})

	c.tick(context.Background())

	// With a near-180-degree error the slowdown factor floors out at 0 and
	// the effective reference speed collapses to 0 (the 2 m/s cornering
	// floor only applies while the scaled speed is above 0), so the
	// integrator should move very little relative to an unthrottled 20 m/s
	// target at Speed=5.
	if c.integratorV > (20-5)*DtControl {
		t.Fatalf("integratorV = %v, expected cornering slowdown to suppress the raw reference-speed error", c.integratorV)
	}
}

func TestFaultModeZeroesIntegrator(t *testing.T) {
	c, h := newTestController()
	h.SetState(hub.VehicleState{Automatic: true})
	h.PublishSensor(hub.SensorFrame{X: 0, Y: 0, Heading: 0, Speed: 5})
	h.SetObjective(hub.NavigationObjective{Active: true, X: 100, Y: 0, ReferenceSpeed: 10})
	c.tick(context.Background())

	if c.integratorV == 0 {
		t.Fatal("expected non-zero integrator after a tracking tick")
	}

	h.SetState(hub.VehicleState{Fault: true})
	c.tick(context.Background())

	if c.integratorV != 0 {
		t.Fatalf("integratorV = %v, want 0 after a fault tick", c.integratorV)
	}
}
