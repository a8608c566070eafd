// Package safety — validate.go
//
// Validator checks every VehicleState transition CommandLogic is about to
// commit, and every ActuatorCommand before it reaches the driver, before
// the write lands in the DataHub. Applies bounds/monotonicity/hash-chain
// checks to this domain's transitions. Validator never panics: workers do
// not propagate errors to siblings that way, so a rejection is always just
// an error plus a logged Violation.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ViolationType names a class of rejected transition or command.
type ViolationType string

const (
	ViolationPrematureFaultClear ViolationType = "premature_fault_clear"
	ViolationOutOfBounds         ViolationType = "out_of_bounds_command"
	ViolationNonMonotonicTime    ViolationType = "non_monotonic_time"
)

// Violation describes a rejected transition or command.
type Violation struct {
	Type      ViolationType
	Message   string
	Timestamp time.Time
}

func (v *Violation) Error() string {
	return fmt.Sprintf("safety violation [%s]: %s", v.Type, v.Message)
}

// Decision is one accepted VehicleState transition, hash-chained for the
// audit ledger (internal/storage).
type Decision struct {
	FromFault     bool      `json:"from_fault"`
	ToFault       bool      `json:"to_fault"`
	FromAutomatic bool      `json:"from_automatic"`
	ToAutomatic   bool      `json:"to_automatic"`
	LatchedCode   int       `json:"latched_code"`
	Timestamp     time.Time `json:"timestamp"`
	DecisionHash  string    `json:"decision_hash"`
	ParentHash    string    `json:"parent_hash"`
}

// Validator enforces the plant's safety invariants before a transition or
// actuator command is committed.
type Validator struct {
	mu               sync.Mutex
	log              *zap.Logger
	lastTimestamp    time.Time
	lastDecisionHash string
	violationCount   int64
}

// NewValidator creates a Validator; log must not be nil.
func NewValidator(log *zap.Logger) *Validator {
	return &Validator{log: log, lastTimestamp: time.Now()}
}

// ValidateTransition checks a proposed VehicleState transition.
//
//   - rejects clearing fault when latchedCode == hub.FaultObstacle (4)
//     unless backoffComplete is true: the back-off maneuver must finish
//     before the latch clears;
//   - rejects a non-monotonic timestamp;
//   - on acceptance, produces a hash-chained Decision for the ledger.
func (v *Validator) ValidateTransition(fromFault, toFault, fromAuto, toAuto bool, latchedCode int, backoffComplete bool, ts time.Time) (*Decision, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if ts.Before(v.lastTimestamp) {
		return nil, v.reject(&Violation{
			Type:      ViolationNonMonotonicTime,
			Message:   fmt.Sprintf("decision timestamp %v precedes last accepted %v", ts, v.lastTimestamp),
			Timestamp: time.Now(),
		})
	}

	if fromFault && !toFault && latchedCode == 4 && !backoffComplete {
		return nil, v.reject(&Violation{
			Type:      ViolationPrematureFaultClear,
			Message:   "cannot clear collision fault before the back-off maneuver completes",
			Timestamp: time.Now(),
		})
	}

	d := &Decision{
		FromFault:     fromFault,
		ToFault:       toFault,
		FromAutomatic: fromAuto,
		ToAutomatic:   toAuto,
		LatchedCode:   latchedCode,
		Timestamp:     ts,
	}

	hash, err := canonicalHash(d, v.lastDecisionHash)
	if err != nil {
		return nil, fmt.Errorf("hash decision: %w", err)
	}
	d.DecisionHash = hash
	d.ParentHash = v.lastDecisionHash

	v.lastDecisionHash = hash
	v.lastTimestamp = ts
	return d, nil
}

// ValidateActuatorCommand bounds-checks throttle (-100..100) and heading
// (0..359) before a command is accepted from any producer.
func ValidateActuatorCommand(throttle, heading int) error {
	if throttle < -100 || throttle > 100 {
		return &Violation{
			Type:      ViolationOutOfBounds,
			Message:   fmt.Sprintf("throttle %d outside [-100,100]", throttle),
			Timestamp: time.Now(),
		}
	}
	if heading < 0 || heading > 359 {
		return &Violation{
			Type:      ViolationOutOfBounds,
			Message:   fmt.Sprintf("heading %d outside [0,359]", heading),
			Timestamp: time.Now(),
		}
	}
	return nil
}

func (v *Validator) reject(viol *Violation) error {
	v.violationCount++
	v.log.Warn("safety transition rejected",
		zap.String("type", string(viol.Type)),
		zap.String("message", viol.Message),
		zap.Int64("total_violations", v.violationCount))
	return viol
}

// canonicalHash computes hash(decision) = sha256(canonical json of decision
// fields || parent_hash), chaining each accepted decision to the last.
func canonicalHash(d *Decision, parentHash string) (string, error) {
	canonical := map[string]interface{}{
		"from_fault":     d.FromFault,
		"to_fault":       d.ToFault,
		"from_automatic": d.FromAutomatic,
		"to_automatic":   d.ToAutomatic,
		"latched_code":   d.LatchedCode,
		"timestamp":      d.Timestamp.UnixNano(),
	}
	jsonBytes, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(jsonBytes)
	h.Write([]byte(parentHash))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ViolationCount returns the number of rejected transitions so far.
func (v *Validator) ViolationCount() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.violationCount
}
