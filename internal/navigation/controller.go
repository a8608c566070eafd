// Package navigation — controller.go
//
// NavigationController: pure-pursuit steering plus decoupled
// integral-proportional speed control, dispatched across four modes
// (fault / manual / automatic-idle / automatic-tracking) with bumpless
// transfer: setpoints snap to measurement on every manual tick so
// switching back to automatic never produces a setpoint jump.
//
// Manual-mode steering commands (45/-45) are absolute headings, not
// relative offsets; see controller_test.go for the explicit flag.
package navigation

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/periodic"
	"github.com/haulctl/truckctl/internal/safety"
)

// Period is NavigationController's fixed rate (100ms / 10Hz).
const Period = 100 * time.Millisecond

// Tunable constants.
const (
	Wheelbase      = 6.0  // L, metres
	LookaheadK     = 1.1  // k, seconds
	LookaheadMin   = 2.8  // metres
	KpV            = 20.0 // speed proportional gain
	KiV            = 20.0 // speed integral gain
	DtControl      = 0.1  // seconds
	corneringStart = 10.0 // degrees: error beyond which slowdown begins
	corneringFull  = 112.5
	minCorneringV  = 2.0
)

// Controller holds the speed integrator and the two setpoints that must be
// zeroed or re-aligned on mode transitions (bumpless transfer).
type Controller struct {
	h       *hub.DataHub
	metrics *observability.Metrics
	log     *zap.Logger

	integratorV float64

	// setpointSpeed/setpointHeading track the manual-mode bumpless-transfer
	// targets. The pure-pursuit law in mode D computes its own
	// heading error fresh from the objective every tick and does not read
	// these back; they exist to document intent and are available to a
	// future extension (e.g. a rate-limited manual handover).
	setpointSpeed   float64
	setpointHeading float64
}

// New constructs a NavigationController.
func New(h *hub.DataHub, metrics *observability.Metrics, log *zap.Logger) *Controller {
	return &Controller{h: h, metrics: metrics, log: log}
}

// Run drives the controller at Period until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	periodic.Run(ctx, Period, c.tick)
}

func (c *Controller) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		c.metrics.ControlLoopLatency.Observe(time.Since(start).Seconds())
	}()

	snap := c.h.ReadSnapshot()
	state := c.h.GetState()
	cmd := c.h.GetOperatorCommand()
	objective := c.h.GetObjective()

	var out hub.ActuatorCommand

	switch {
	case state.Fault:
		out = c.modeFault(snap)
	case !state.Automatic:
		out = c.modeManual(snap, cmd)
	case !objective.Active:
		out = c.modeAutoIdle(snap)
	default:
		out = c.modeAutoTracking(snap, objective)
	}

	out.Throttle = clampInt(out.Throttle, -100, 100)
	out.Heading = int(normalise360(float64(out.Heading)))

	if err := safety.ValidateActuatorCommand(out.Throttle, out.Heading); err != nil {
		c.log.Error("controller produced invalid actuator command, braking", zap.Error(err))
		out = hub.ActuatorCommand{Throttle: -100, Heading: snap.Heading}
	}

	c.h.SetActuator(out)
	c.metrics.ActuatorThrottle.Set(float64(out.Throttle))
	c.metrics.ActuatorHeading.Set(float64(out.Heading))
}

// modeFault is mode A: brake, hold heading, zero integrators.
func (c *Controller) modeFault(snap hub.SensorFrame) hub.ActuatorCommand {
	c.integratorV = 0
	return hub.ActuatorCommand{Throttle: -100, Heading: snap.Heading}
}

// modeManual is mode B. Steering commands are absolute degrees, matching
// the design decision recorded above and in DESIGN.md.
func (c *Controller) modeManual(snap hub.SensorFrame, cmd hub.OperatorCommand) hub.ActuatorCommand {
	throttle := 0
	if cmd.Accelerate {
		throttle = 50
	}

	heading := 0
	switch {
	case cmd.SteerRight:
		heading = 45
	case cmd.SteerLeft:
		heading = -45
	}

	c.setpointSpeed = float64(snap.Speed)
	c.setpointHeading = float64(snap.Heading)
	c.integratorV = 0

	return hub.ActuatorCommand{Throttle: throttle, Heading: heading}
}

// modeAutoIdle is mode C: automatic with no active objective.
func (c *Controller) modeAutoIdle(snap hub.SensorFrame) hub.ActuatorCommand {
	c.integratorV = 0
	return hub.ActuatorCommand{Throttle: -100, Heading: snap.Heading}
}

// modeAutoTracking is mode D: pure-pursuit steering with decoupled
// integral-proportional speed control.
func (c *Controller) modeAutoTracking(snap hub.SensorFrame, obj hub.NavigationObjective) hub.ActuatorCommand {
	x, y := float64(snap.X), float64(snap.Y)
	theta := float64(snap.Heading)
	vMeas := float64(snap.Speed)

	dx := obj.X - x
	dy := obj.Y - y
	distWp := math.Hypot(dx, dy)

	thetaRef := normalise360(radToDeg(math.Atan2(dy, dx)))
	errHeading := normaliseSigned(thetaRef - theta)

	vRef := obj.ReferenceSpeed
	factor := 1.0
	if math.Abs(errHeading) > corneringStart {
		factor = 1 - math.Min(math.Abs(errHeading), corneringFull)/corneringFull
	}
	vRef *= factor
	if vRef > 0 && vRef < minCorneringV {
		vRef = minCorneringV
	}
	if factor < 1.0 {
		c.metrics.CorneringSlowdownFactor.Observe(factor)
	}

	c.integratorV += (vRef - vMeas) * DtControl
	c.integratorV = clampFloat(c.integratorV, -100, 100)
	throttle := -KpV*vMeas + KiV*c.integratorV

	lookahead := math.Max(LookaheadMin, vMeas*LookaheadK)

	var targetX, targetY float64
	if distWp > lookahead {
		targetX = x + dx*(lookahead/distWp)
		targetY = y + dy*(lookahead/distWp)
	} else {
		targetX = obj.X
		targetY = obj.Y
	}

	alphaDeg := normaliseSigned(radToDeg(math.Atan2(targetY-y, targetX-x)) - theta)
	deltaRad := math.Atan(2 * Wheelbase * math.Sin(degToRad(alphaDeg)) / lookahead)
	headingCmd := normalise360(theta + radToDeg(deltaRad))

	return hub.ActuatorCommand{Throttle: int(throttle), Heading: int(headingCmd)}
}

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
func degToRad(deg float64) float64 { return deg * math.Pi / 180 }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
