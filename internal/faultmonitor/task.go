// Package faultmonitor — task.go
//
// FaultMonitor: watchdog task. Reads raw sensor state directly from the
// driver, bypassing SensorTask's filtering, so thresholds are never masked
// by smoothing. Runs at 200ms/5Hz and distinguishes a 95°C warn threshold
// from a 120°C fault threshold.
package faultmonitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/periodic"
	"github.com/haulctl/truckctl/internal/transport"
)

// Period is the FaultMonitor's fixed rate (200ms / 5Hz).
const Period = 200 * time.Millisecond

// Temperature thresholds.
const (
	WarnTemperature  = 95
	FaultTemperature = 120
)

// Task is the fault-monitoring watchdog.
type Task struct {
	driver  transport.SensorPort
	events  *hub.Events
	log     *zap.Logger
	truckID int

	warnedOnce bool
}

// New constructs a FaultMonitor for truckID.
func New(driver transport.SensorPort, events *hub.Events, log *zap.Logger, truckID int) *Task {
	return &Task{driver: driver, events: events, log: log, truckID: truckID}
}

// Run drives the task at Period until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	periodic.Run(ctx, Period, t.tick)
}

func (t *Task) tick(ctx context.Context) {
	raw, err := t.driver.ReadSensorData(ctx, t.truckID)
	if err != nil {
		t.log.Warn("fault monitor read failed, skipping tick", zap.Error(err))
		return
	}

	switch {
	case raw.Temperature > FaultTemperature:
		t.events.Signal(hub.FaultThermal)
		t.log.Error("thermal fault latched", zap.Int("temperature_c", raw.Temperature))
	case raw.Temperature > WarnTemperature:
		if !t.warnedOnce {
			t.log.Warn("engine temperature above warning threshold",
				zap.Int("temperature_c", raw.Temperature), zap.Int("warn_threshold_c", WarnTemperature))
			t.warnedOnce = true
		}
	default:
		t.warnedOnce = false
	}

	if raw.ElectricalFault {
		t.events.Signal(hub.FaultElectrical)
	}
	if raw.HydraulicFault {
		t.events.Signal(hub.FaultHydraulic)
	}
}
