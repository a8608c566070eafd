// Package main — cmd/truckctl-sim/main.go
//
// truckctl-sim: standalone scenario runner.
//
// Purpose: exercise the seed end-to-end scenarios against simdriver without
// the full agent's storage, metrics server, or operator socket — a
// CAS/FaultMonitor/CommandLogic/NavigationController/gateway plant wired
// directly in-process and driven for a fixed duration.
//
// Output: per-tick CSV to stdout (t, x, y, heading, speed, throttle, fault,
// automatic). Summary: scenario pass/fail to stderr.
//
// Usage:
//
//	truckctl-sim -scenario 1
//	truckctl-sim -scenario 4 -duration 5s
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"flag"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/cas"
	"github.com/haulctl/truckctl/internal/commandlogic"
	"github.com/haulctl/truckctl/internal/faultmonitor"
	"github.com/haulctl/truckctl/internal/gateway"
	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/navigation"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/safety"
	"github.com/haulctl/truckctl/internal/sensor"
	"github.com/haulctl/truckctl/internal/transport/simdriver"
)

func main() {
	scenario := flag.Int("scenario", 1, "Seed scenario to run (1-6)")
	duration := flag.Duration("duration", 15*time.Second, "Maximum scenario run time")
	seed := flag.Int64("seed", 1, "simdriver PRNG seed")
	flag.Parse()

	if *scenario < 1 || *scenario > 6 {
		fmt.Fprintln(os.Stderr, "ERROR: scenario must be in [1, 6]")
		os.Exit(1)
	}

	log := zap.NewNop()
	plant := newPlant(log, *seed)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	plant.start(ctx)

	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"t_ms", "x", "y", "heading", "speed", "throttle", "fault", "automatic"})

	result := runScenario(ctx, plant, *scenario, w)
	w.Flush()

	fmt.Fprintf(os.Stderr, "\n=== SCENARIO %d RESULT ===\n", *scenario)
	fmt.Fprintf(os.Stderr, "%s\n", result.detail)
	if result.pass {
		fmt.Fprintln(os.Stderr, "RESULT: PASS")
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, "RESULT: FAIL")
	os.Exit(2)
}

// plant wires every worker except the route planner directly against an
// in-process simdriver, skipping storage, metrics export, and the operator
// socket.
type plant struct {
	h       *hub.DataHub
	events  *hub.Events
	metrics *observability.Metrics
	driver  *simdriver.Driver
	log     *zap.Logger
}

func newPlant(log *zap.Logger, seed int64) *plant {
	return &plant{
		h:       hub.New(),
		events:  hub.NewEvents(),
		metrics: observability.NewMetrics(),
		driver:  simdriver.New(0, 0, seed),
		log:     log,
	}
}

func (p *plant) start(ctx context.Context) {
	go p.driver.Run(ctx)
	go sensor.New(p.h, p.driver, p.metrics, p.log, 1).Run(ctx)
	go faultmonitor.New(p.driver, p.events, p.log, 1).Run(ctx)
	go cas.New(p.h, p.events, p.driver, p.metrics, p.log).Run(ctx)
	go commandlogic.New(p.h, p.events, safety.NewValidator(p.log), nil, p.metrics, p.log).Run(ctx)
	go navigation.New(p.h, p.metrics, p.log).Run(ctx)
	go gateway.New(p.h, p.events, p.driver, p.metrics, p.log).Run(ctx)
	time.Sleep(50 * time.Millisecond) // let the first sensor publish land
}

type scenarioResult struct {
	pass   bool
	detail string
}

func runScenario(ctx context.Context, p *plant, scenario int, w *csv.Writer) scenarioResult {
	start := time.Now()
	record := func() hub.SensorFrame {
		snap := p.h.ReadSnapshot()
		active, _ := p.events.State()
		state := p.h.GetState()
		_ = w.Write([]string{
			strconv.FormatInt(time.Since(start).Milliseconds(), 10),
			strconv.Itoa(snap.X), strconv.Itoa(snap.Y),
			strconv.Itoa(snap.Heading), strconv.Itoa(snap.Speed),
			strconv.Itoa(p.h.GetActuator().Throttle),
			strconv.FormatBool(active),
			strconv.FormatBool(state.Automatic),
		})
		return snap
	}

	switch scenario {
	case 1:
		return runStraightLine(ctx, p, record)
	case 2:
		return runCornerSlowdown(ctx, p, record)
	case 3:
		return runThermalFault(ctx, p, record)
	case 4:
		return runCollisionOverride(ctx, p, record)
	case 5:
		return runManualBumpless(ctx, p, record)
	case 6:
		return runRouteReplacement(ctx, p, record)
	}
	return scenarioResult{pass: false, detail: "unknown scenario"}
}

func requestAuto(p *plant) {
	p.h.SetOperatorCommand(hub.OperatorCommand{RequestAutomatic: true})
	time.Sleep(150 * time.Millisecond)
}

const arrivalRadius = 5.0

// runStraightLine is seed scenario 1: a single waypoint at (100, 0), arrival
// within 15s and ARRIVAL_RADIUS of it.
func runStraightLine(ctx context.Context, p *plant, record func() hub.SensorFrame) scenarioResult {
	requestAuto(p)
	p.h.SetObjective(hub.NavigationObjective{Active: true, X: 100, Y: 0, ReferenceSpeed: 20})

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			snap := record()
			dist := math.Hypot(float64(snap.X)-100, float64(snap.Y))
			return scenarioResult{pass: false, detail: fmt.Sprintf("timed out, distance to target = %.2fm", dist)}
		case <-ticker.C:
			snap := record()
			dist := math.Hypot(float64(snap.X)-100, float64(snap.Y))
			if dist < arrivalRadius {
				return scenarioResult{pass: true, detail: fmt.Sprintf("reached (100,0), distance = %.2fm", dist)}
			}
		}
	}
}

// runCornerSlowdown stands in for seed scenario 2 with a single objective at
// (50, 50), 45° off the starting heading, and passes if the lowest commanded
// throttle seen before the run ends is below 40. No two-waypoint 90° corner
// is driven, and the scaled reference speed itself is not checked.
func runCornerSlowdown(ctx context.Context, p *plant, record func() hub.SensorFrame) scenarioResult {
	requestAuto(p)
	p.h.SetObjective(hub.NavigationObjective{Active: true, X: 50, Y: 50, ReferenceSpeed: 20})

	minThrottleSeen := 1000
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			record()
			slowed := minThrottleSeen < int(0.2*20*10) // heuristic: well under full-speed throttle command
			return scenarioResult{
				pass:   slowed,
				detail: fmt.Sprintf("min throttle observed during turn = %d", minThrottleSeen),
			}
		case <-ticker.C:
			record()
			act := p.h.GetActuator()
			if act.Throttle < minThrottleSeen {
				minThrottleSeen = act.Throttle
			}
		}
	}
}

// runThermalFault is seed scenario 3: inject 121°C for one tick, expect the
// latch within 200ms and a sustained brake thereafter.
func runThermalFault(ctx context.Context, p *plant, record func() hub.SensorFrame) scenarioResult {
	requestAuto(p)
	p.h.SetObjective(hub.NavigationObjective{Active: true, X: 1000, Y: 0, ReferenceSpeed: 20})
	time.Sleep(200 * time.Millisecond)

	p.driver.InjectTemperature(121)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		record()
		if active, code := p.events.State(); active && code == hub.FaultThermal {
			time.Sleep(300 * time.Millisecond)
			record()
			act := p.h.GetActuator()
			return scenarioResult{
				pass:   act.Throttle == -100,
				detail: fmt.Sprintf("latched code=%d, throttle after latch=%d", code, act.Throttle),
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return scenarioResult{pass: false, detail: "thermal fault never latched within 200ms"}
}

// runCollisionOverride is seed scenario 4: lidar drop to 5m must brake
// within one CAS period and latch FaultObstacle shortly after.
func runCollisionOverride(ctx context.Context, p *plant, record func() hub.SensorFrame) scenarioResult {
	requestAuto(p)
	p.h.SetObjective(hub.NavigationObjective{Active: true, X: 1000, Y: 0, ReferenceSpeed: 20})
	time.Sleep(200 * time.Millisecond)

	p.driver.SetObstacleDistance(5)
	time.Sleep(60 * time.Millisecond)
	record()
	driverThrottle, _ := p.driver.LastCommand()
	if driverThrottle != -100 {
		return scenarioResult{pass: false, detail: fmt.Sprintf("driver-received throttle after 60ms = %d, want -100", driverThrottle)}
	}

	time.Sleep(60 * time.Millisecond)
	record()
	active, code := p.events.State()
	if !active || code != hub.FaultObstacle {
		return scenarioResult{pass: false, detail: fmt.Sprintf("latch = (%v, %d), want (true, %d)", active, code, hub.FaultObstacle)}
	}

	p.driver.SetObstacleDistance(hub.MaxLidarRange)
	p.h.SetOperatorCommand(hub.OperatorCommand{Rearm: true})
	time.Sleep(100 * time.Millisecond)
	record()
	backoffAct := p.h.GetActuator()

	return scenarioResult{
		pass: backoffAct.Throttle < 0,
		detail: fmt.Sprintf("brake within 60ms: ok, latch within 120ms: ok, back-off throttle = %d",
			backoffAct.Throttle),
	}
}

// runManualBumpless is seed scenario 5 in reduced form: hold accelerate in
// manual for 2s with no steering input, then request auto toward an
// objective at (1000, 500) with reference speed 15 m/s, and check the first
// auto throttle lies within ±(KpV·v_meas + 5). No particular speed or
// heading is reached before the switch.
func runManualBumpless(ctx context.Context, p *plant, record func() hub.SensorFrame) scenarioResult {
	p.h.SetOperatorCommand(hub.OperatorCommand{Accelerate: true, SteerLeft: false, SteerRight: false})
	time.Sleep(2 * time.Second)
	record()

	p.h.SetOperatorCommand(hub.OperatorCommand{})
	target := hub.NavigationObjective{Active: true, X: 1000, Y: math.Sin(30*math.Pi/180) * 1000, ReferenceSpeed: 15}
	p.h.SetObjective(target)
	requestAuto(p)

	time.Sleep(100 * time.Millisecond)
	snap := record()
	act := p.h.GetActuator()
	bound := navigation.KpV * float64(snap.Speed)

	return scenarioResult{
		pass: math.Abs(float64(act.Throttle)) <= bound+5,
		detail: fmt.Sprintf("v_meas=%d, first auto throttle=%d, bound=±%.1f",
			snap.Speed, act.Throttle, bound),
	}
}

// runRouteReplacement is seed scenario 6: with an objective already active,
// a replacement single-waypoint objective must take effect within one tick
// (the planner itself is not wired here; this exercises the controller's
// reaction to SetObjective being called directly, the same call the
// planner makes on route replacement).
func runRouteReplacement(ctx context.Context, p *plant, record func() hub.SensorFrame) scenarioResult {
	requestAuto(p)
	p.h.SetObjective(hub.NavigationObjective{Active: true, X: 20, Y: 0, ReferenceSpeed: 10})
	time.Sleep(200 * time.Millisecond)
	record()

	p.h.SetObjective(hub.NavigationObjective{Active: true, X: -20, Y: 0, ReferenceSpeed: 10})
	time.Sleep(150 * time.Millisecond)
	record()

	obj := p.h.GetObjective()
	return scenarioResult{
		pass:   obj.X == -20 && obj.Y == 0,
		detail: fmt.Sprintf("objective after replacement = (%.0f, %.0f)", obj.X, obj.Y),
	}
}
