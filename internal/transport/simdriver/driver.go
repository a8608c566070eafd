// Package simdriver — driver.go
//
// In-process kinematic stand-in for the physics simulator collaborator: a
// bicycle-model position/heading integrator plus a thermodynamic
// engine-temperature model. Map loading and collision geometry are not
// reproduced here; this is a single-truck physics stand-in for local runs
// and tests, not a mine simulator.
package simdriver

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/periodic"
)

// StepPeriod is the physics integration rate, a fixed dt=0.1s step.
const StepPeriod = 100 * time.Millisecond

const (
	stepDt            = 0.1
	maxAcceleration   = 3.0  // m/s^2 at full throttle
	maxSpeed          = 25.0 // m/s
	maxTurnRateDegSec = 45.0 // degrees/second, bicycle-model steering limit
	ambientTemp       = 25.0
	heatGenCoeff      = 0.5
	heatLossCoeff     = 0.1
	defaultObstacle   = hub.MaxLidarRange
)

// Driver is an in-process physics stand-in satisfying transport.SensorPort
// and transport.ActuatorPort for one truck.
type Driver struct {
	mu sync.Mutex

	x, y, heading, speed, temperature float64
	electricalFault, hydraulicFault   bool
	obstacleDistance                  float64

	cmdThrottle int
	cmdHeading  int

	manual, fault bool

	rng *rand.Rand
}

// New creates a Driver seeded at the given starting pose.
func New(startX, startY float64, seed int64) *Driver {
	return &Driver{
		x:                startX,
		y:                startY,
		temperature:      85.0,
		obstacleDistance: defaultObstacle,
		rng:              rand.New(rand.NewSource(seed)),
	}
}

// Run steps the physics model at StepPeriod until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	periodic.Run(ctx, StepPeriod, d.step)
}

func (d *Driver) step(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	accel := (float64(d.cmdThrottle) / 100.0) * maxAcceleration
	d.speed += accel * stepDt
	d.speed = clamp(d.speed, -maxSpeed/2, maxSpeed)

	headingErr := normaliseSigned(float64(d.cmdHeading) - d.heading)
	maxStep := maxTurnRateDegSec * stepDt
	turn := clamp(headingErr, -maxStep, maxStep)
	d.heading = normalise360(d.heading + turn)

	rad := d.heading * math.Pi / 180
	d.x += d.speed * math.Cos(rad) * stepDt
	d.y += d.speed * math.Sin(rad) * stepDt

	heatGen := math.Abs(d.speed) * heatGenCoeff
	heatLoss := heatLossCoeff * (d.temperature - ambientTemp)
	d.temperature += (heatGen - heatLoss) * stepDt
}

// InjectElectricalFault sets or clears the simulated electrical fault flag,
// for test harnesses driving the seed scenarios.
func (d *Driver) InjectElectricalFault(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.electricalFault = active
}

// InjectHydraulicFault sets or clears the simulated hydraulic fault flag.
func (d *Driver) InjectHydraulicFault(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hydraulicFault = active
}

// SetObstacleDistance overrides the simulated forward lidar reading, for
// exercising collision-avoidance scenarios without real obstacle geometry.
func (d *Driver) SetObstacleDistance(metres float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obstacleDistance = metres
}

// InjectTemperature overrides the current engine temperature; the
// thermodynamic model resumes evolving it from there on the next step, for
// exercising the thermal-fault seed scenario without
// waiting out the natural heat-gain curve.
func (d *Driver) InjectTemperature(celsius float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.temperature = celsius
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalise360(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func normaliseSigned(deg float64) float64 {
	d := math.Mod(deg+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
