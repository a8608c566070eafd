// Package hub — types.go
//
// Shared data model for the truck control plant: the record types every
// periodic task reads or writes through the DataHub. Nothing here owns a
// mutex, DataHub is the only thing that synchronizes access to these
// values.
package hub

import "time"

// SensorFrame is one sample of the truck's sensed state. It is produced by
// the sensor task, published by value, and never mutated after publish.
type SensorFrame struct {
	ID int

	// Position in metres, integer, ground-referenced.
	X, Y int

	// Heading in degrees, 0..359, east = 0, counter-clockwise.
	Heading int

	// Speed in m/s, integer.
	Speed int

	// Engine temperature in °C, range -100..+200.
	Temperature int

	// Forward obstacle range in metres. A large cap (MaxLidarRange)
	// stands in for "no obstacle detected".
	LidarDistance float64

	ElectricalFault bool
	HydraulicFault  bool

	Timestamp time.Time
}

// MaxLidarRange is the cap used in place of an unbounded "no obstacle"
// reading (glossary: "∞-valued in the absence of obstacles").
const MaxLidarRange = 100.0

// VehicleState is the authoritative mode/fault record. Only CommandLogic
// writes it; every other component treats it as read-only.
type VehicleState struct {
	Fault     bool
	Automatic bool
}

// OperatorCommand is the latest command frame from the cockpit or a
// transport adapter. Six independent booleans, read-only to everything
// except the component that receives operator input.
type OperatorCommand struct {
	RequestAutomatic bool
	RequestManual    bool
	Rearm            bool
	Accelerate       bool
	SteerRight       bool
	SteerLeft        bool
}

// ActuatorCommand is the output of NavigationController or a CAS override.
type ActuatorCommand struct {
	// Throttle in percent, -100..100.
	Throttle int
	// Heading in degrees, 0..359.
	Heading int
}

// NavigationObjective is the planner's published target for the controller.
type NavigationObjective struct {
	Active bool
	X, Y   float64
	// ReferenceSpeed in m/s.
	ReferenceSpeed float64
}

// Waypoint is one entry in the planner's internal queue.
type Waypoint struct {
	X, Y float64
	// ReferenceSpeed of 0 means "stop at this point".
	ReferenceSpeed float64
}

// RouteMessage is the wire shape of a mission update: an ordered list of
// waypoints, possibly empty.
type RouteMessage struct {
	Route []Waypoint
}

// Fault latch codes.
const (
	FaultNone       = 0
	FaultThermal    = 1
	FaultElectrical = 2
	FaultHydraulic  = 3
	FaultObstacle   = 4
	FaultExternal   = 99
)
