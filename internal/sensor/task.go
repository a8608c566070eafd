// Package sensor — task.go
//
// SensorTask: the producer side of the control plant. Reads the driver,
// perturbs continuous channels with Gaussian noise to emulate real
// sensors, applies the EMA filter to position and heading, and publishes
// the resulting frame to the DataHub. Temperature, lidar range, and the
// fault bits pass through unfiltered so FaultMonitor never sees a smoothed
// excursion.
package sensor

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/periodic"
	"github.com/haulctl/truckctl/internal/transport"
)

// Period is the SensorTask's fixed rate (100ms / 10Hz).
const Period = 100 * time.Millisecond

// Noise standard deviations for the simulated sensor channels.
const (
	posNoiseSigma     = 1.0
	headingNoiseSigma = 2.0
)

// Task is the sensor acquisition and filtering task for one truck.
type Task struct {
	hub     *hub.DataHub
	driver  transport.SensorPort
	metrics *observability.Metrics
	log     *zap.Logger
	truckID int
	rng     *rand.Rand

	posX, posY, heading Filter
}

// New constructs a SensorTask for truckID, reading from driver and
// publishing into h.
func New(h *hub.DataHub, driver transport.SensorPort, metrics *observability.Metrics, log *zap.Logger, truckID int) *Task {
	return &Task{
		hub:     h,
		driver:  driver,
		metrics: metrics,
		log:     log,
		truckID: truckID,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run drives the task at Period until ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	periodic.Run(ctx, Period, t.tick)
}

// tick performs one read-noise-filter-publish cycle. Transient driver I/O
// errors are logged and skipped — the task retains its EMA state and
// resumes on the next tick.
func (t *Task) tick(ctx context.Context) {
	raw, err := t.driver.ReadSensorData(ctx, t.truckID)
	if err != nil {
		t.log.Warn("sensor read failed, skipping tick", zap.Error(err))
		return
	}

	noisyX := float64(raw.X) + t.rng.NormFloat64()*posNoiseSigma
	noisyY := float64(raw.Y) + t.rng.NormFloat64()*posNoiseSigma
	noisyHeading := float64(raw.Heading) + t.rng.NormFloat64()*headingNoiseSigma

	filteredX := t.posX.Update(noisyX)
	filteredY := t.posY.Update(noisyY)
	filteredHeading := t.heading.Update(noisyHeading)

	frame := hub.SensorFrame{
		ID:              raw.ID,
		X:               int(filteredX),
		Y:               int(filteredY),
		Heading:         normalise360(filteredHeading),
		Speed:           raw.Speed,
		Temperature:     raw.Temperature,
		LidarDistance:   raw.LidarDistance,
		ElectricalFault: raw.ElectricalFault,
		HydraulicFault:  raw.HydraulicFault,
		Timestamp:       time.Now(),
	}

	t.hub.PublishSensor(frame)
	t.metrics.SensorFramesPublishedTotal.Inc()
	t.metrics.HubHistoryDepth.Set(float64(t.hub.HistoryLen()))
}

// normalise360 folds deg into [0, 360).
func normalise360(deg float64) int {
	d := int(deg) % 360
	if d < 0 {
		d += 360
	}
	return d
}
