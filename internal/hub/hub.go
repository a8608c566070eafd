// Package hub — hub.go
//
// DataHub is the concurrency-safe central store of the truck control
// plant. It holds exactly one current snapshot of every single-value
// entity plus a bounded FIFO history of sensor frames. Every accessor
// locks, copies, and returns promptly, no accessor blocks except
// ConsumeSensor, which waits on a condition variable for the history to
// become non-empty.
package hub

import (
	"sync"
)

// HistoryCapacity bounds the sensor-frame FIFO.
const HistoryCapacity = 200

// DataHub is the single shared mutable object of the plant. Workers are
// handed a *DataHub (or a narrower interface over it) at startup; no
// worker owns another worker.
type DataHub struct {
	mu sync.Mutex
	cv *sync.Cond

	// history is a ring buffer of capacity HistoryCapacity. head indexes
	// the oldest entry; count is the number of valid entries.
	history []SensorFrame
	head    int
	count   int

	lastFrame SensorFrame
	hasFrame  bool

	state    VehicleState
	opCmd    OperatorCommand
	actuator ActuatorCommand
	objective NavigationObjective
}

// New creates an empty DataHub.
func New() *DataHub {
	h := &DataHub{
		history: make([]SensorFrame, HistoryCapacity),
	}
	h.cv = sync.NewCond(&h.mu)
	return h
}

// PublishSensor appends a frame to history (overwriting the oldest entry if
// full) and replaces the snapshot. Never blocks; wakes at most one waiter
// in ConsumeSensor.
func (h *DataHub) PublishSensor(frame SensorFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == HistoryCapacity {
		// Buffer full: overwrite oldest, advance head.
		idx := (h.head + h.count) % HistoryCapacity
		h.history[idx] = frame
		h.head = (h.head + 1) % HistoryCapacity
	} else {
		idx := (h.head + h.count) % HistoryCapacity
		h.history[idx] = frame
		h.count++
	}

	h.lastFrame = frame
	h.hasFrame = true
	h.cv.Signal()
}

// ConsumeSensor blocks until history is non-empty, then removes and returns
// the oldest frame. Reserved for the telemetry logger (external); no
// component in the control plant itself calls this.
func (h *DataHub) ConsumeSensor() SensorFrame {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.count == 0 {
		h.cv.Wait()
	}

	f := h.history[h.head]
	h.head = (h.head + 1) % HistoryCapacity
	h.count--
	return f
}

// ReadSnapshot returns a non-blocking copy of the last published frame, or
// the zero frame if nothing has been published yet.
func (h *DataHub) ReadSnapshot() SensorFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastFrame
}

// HistoryLen reports the current number of buffered frames.
func (h *DataHub) HistoryLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// SetState replaces the authoritative VehicleState. Only CommandLogic calls
// this in normal operation.
func (h *DataHub) SetState(s VehicleState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// GetState returns the current VehicleState by value.
func (h *DataHub) GetState() VehicleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SetOperatorCommand replaces the latest operator command frame.
func (h *DataHub) SetOperatorCommand(c OperatorCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opCmd = c
}

// GetOperatorCommand returns the latest operator command frame by value.
func (h *DataHub) GetOperatorCommand() OperatorCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opCmd
}

// SetActuator replaces the pending actuator command. Last-writer-wins per
// tick: CAS writing more often than the controller is the intended way an
// override sticks until the next controller tick.
func (h *DataHub) SetActuator(a ActuatorCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actuator = a
}

// GetActuator returns the pending actuator command by value.
func (h *DataHub) GetActuator() ActuatorCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actuator
}

// SetObjective replaces the current navigation objective.
func (h *DataHub) SetObjective(o NavigationObjective) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objective = o
}

// GetObjective returns the current navigation objective by value.
func (h *DataHub) GetObjective() NavigationObjective {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.objective
}
