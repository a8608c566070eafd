// Package transport — ports.go
//
// Capability interfaces consumed by the core control plant. The
// physics-simulator stand-in (simdriver) satisfies SensorPort and
// ActuatorPort; the orchestrator decides which concrete implementation to
// wire at startup. The operator socket (opsock) implements none of these:
// it writes operator commands straight into the DataHub.
package transport

import (
	"context"

	"github.com/haulctl/truckctl/internal/hub"
)

// MaxLidarRange mirrors hub.MaxLidarRange; kept here too so driver
// implementations don't need to import hub just for this constant.
const MaxLidarRange = hub.MaxLidarRange

// SensorPort reads raw vehicle state. Implementations may perform a
// short, bounded I/O operation.
type SensorPort interface {
	// ReadSensorData returns the raw, unfiltered state of truckID.
	ReadSensorData(ctx context.Context, truckID int) (hub.SensorFrame, error)
}

// ActuatorPort writes commands to the vehicle and optionally reports the
// supervisor's summary state to external observers.
type ActuatorPort interface {
	// SetActuators writes throttle (-100..100) and heading (0..359).
	SetActuators(ctx context.Context, throttlePct, headingDeg int) error

	// PublishSystemState is optional telemetry; implementations that don't
	// need it can no-op.
	PublishSystemState(ctx context.Context, manual, fault bool) error
}

// RouteSource is polled by RoutePlanner for new missions.
type RouteSource interface {
	// PollNewRoute returns (route, true) if a new mission arrived since the
	// last poll, or (zero, false) if nothing changed.
	PollNewRoute(ctx context.Context) (hub.RouteMessage, bool, error)
}

// OperatorSource is a capability for a driver that owns the operator
// command channel. Nothing in this module implements or polls it:
// CommandLogic and NavigationController read the operator command from the
// DataHub.
type OperatorSource interface {
	ReadOperatorCommand(ctx context.Context) (hub.OperatorCommand, error)
}
