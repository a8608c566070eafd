// Package simdriver — ports.go
//
// transport.SensorPort / transport.ActuatorPort implementation: a
// lock-and-copy read of the physics engine's state, and a lock-and-store
// write of the latest actuator command.
package simdriver

import (
	"context"

	"github.com/haulctl/truckctl/internal/hub"
)

// ReadSensorData returns a copy of the driver's current raw physical state.
// truckID is accepted for interface symmetry with a multi-truck wire
// protocol but ignored; this stand-in models exactly one truck.
func (d *Driver) ReadSensorData(ctx context.Context, truckID int) (hub.SensorFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return hub.SensorFrame{
		ID:              truckID,
		X:               int(d.x),
		Y:               int(d.y),
		Heading:         int(normalise360(d.heading)),
		Speed:           int(d.speed),
		Temperature:     int(d.temperature),
		LidarDistance:   d.obstacleDistance,
		ElectricalFault: d.electricalFault,
		HydraulicFault:  d.hydraulicFault,
	}, nil
}

// SetActuators stores the latest commanded throttle/heading for the next
// physics step to integrate.
func (d *Driver) SetActuators(ctx context.Context, throttlePct, headingDeg int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdThrottle = throttlePct
	d.cmdHeading = headingDeg
	return nil
}

// LastCommand returns the most recent throttle/heading the driver actually
// received through SetActuators, as opposed to whatever is merely queued in
// the DataHub. Used by the scenario runner to confirm a CAS override lands
// at the driver itself, not just in the hub.
func (d *Driver) LastCommand() (throttlePct, headingDeg int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmdThrottle, d.cmdHeading
}

// PublishSystemState records the supervisor's summary mode; the stand-in
// has no external telemetry sink, so this only updates local bookkeeping
// used by test assertions.
func (d *Driver) PublishSystemState(ctx context.Context, manual, fault bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.manual = manual
	d.fault = fault
	return nil
}
