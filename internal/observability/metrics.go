// Package observability — metrics.go
//
// Prometheus metrics for the truck control plant.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback by default (127.0.0.1); the configured address is used as given.
//
// Metric naming convention: truckctl_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for truckctl.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Sensor / hub ─────────────────────────────────────────────────────────

	// SensorFramesPublishedTotal counts frames published to the DataHub.
	SensorFramesPublishedTotal prometheus.Counter

	// HubHistoryDepth is the current DataHub history length.
	HubHistoryDepth prometheus.Gauge

	// FaultLatchActive is 1 when Events.Active() is true, else 0.
	FaultLatchActive prometheus.Gauge

	// FaultLatchCode is the currently latched fault code (0 = none).
	FaultLatchCode prometheus.Gauge

	// ─── Collision avoidance ──────────────────────────────────────────────────

	// CASOverridesTotal counts CAS emergency-brake overrides.
	CASOverridesTotal prometheus.Counter

	// ─── Command logic ────────────────────────────────────────────────────────

	// StateTransitionsTotal counts VehicleState transitions.
	// Labels: from_state, to_state
	StateTransitionsTotal *prometheus.CounterVec

	// RearmsTotal counts processed rearm pulses.
	RearmsTotal prometheus.Counter

	// ─── Navigation / control ─────────────────────────────────────────────────

	// ControlLoopLatency records NavigationController tick duration.
	ControlLoopLatency prometheus.Histogram

	// CorneringSlowdownFactor records the cornering speed-scale factor applied
	// in automatic-tracking mode, when below 1.0.
	CorneringSlowdownFactor prometheus.Histogram

	// ActuatorThrottle mirrors the last actuator command's throttle value.
	ActuatorThrottle prometheus.Gauge

	// ActuatorHeading mirrors the last actuator command's heading value.
	ActuatorHeading prometheus.Gauge

	// ─── Planner ──────────────────────────────────────────────────────────────

	// RouteQueueDepth is the current number of queued waypoints.
	RouteQueueDepth prometheus.Gauge

	// WaypointsReachedTotal counts waypoints popped on arrival.
	WaypointsReachedTotal prometheus.Counter

	// ─── Storage ──────────────────────────────────────────────────────────────

	// StorageWriteLatency records BoltDB write transaction latency.
	StorageWriteLatency prometheus.Histogram

	// StorageLedgerEntries is the current number of ledger entries.
	StorageLedgerEntries prometheus.Gauge

	// ─── Agent ────────────────────────────────────────────────────────────────

	// AgentUptimeSeconds is the number of seconds since agent start.
	AgentUptimeSeconds prometheus.Gauge

	// startTime records when the agent started (for uptime calculation).
	startTime time.Time
}

// NewMetrics creates and registers all truckctl Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		SensorFramesPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "truckctl",
			Subsystem: "sensor",
			Name:      "frames_published_total",
			Help:      "Total sensor frames published to the DataHub.",
		}),

		HubHistoryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "hub",
			Name:      "history_depth",
			Help:      "Current depth of the DataHub sensor-frame history.",
		}),

		FaultLatchActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "events",
			Name:      "fault_latch_active",
			Help:      "1 if a fault is currently latched, else 0.",
		}),

		FaultLatchCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "events",
			Name:      "fault_latch_code",
			Help:      "Currently latched fault code (0 = none, 1=thermal, 2=electrical, 3=hydraulic, 4=obstacle, 99=external).",
		}),

		CASOverridesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "truckctl",
			Subsystem: "cas",
			Name:      "overrides_total",
			Help:      "Total collision-avoidance emergency-brake overrides issued.",
		}),

		StateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "truckctl",
			Subsystem: "commandlogic",
			Name:      "state_transitions_total",
			Help:      "Total VehicleState transitions, by from_state and to_state.",
		}, []string{"from_state", "to_state"}),

		RearmsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "truckctl",
			Subsystem: "commandlogic",
			Name:      "rearms_total",
			Help:      "Total operator rearm pulses processed.",
		}),

		ControlLoopLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "truckctl",
			Subsystem: "navigation",
			Name:      "loop_latency_seconds",
			Help:      "NavigationController tick processing latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),

		CorneringSlowdownFactor: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "truckctl",
			Subsystem: "navigation",
			Name:      "cornering_slowdown_factor",
			Help:      "Distribution of the cornering speed-scale factor applied in pure-pursuit mode.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1.0},
		}),

		ActuatorThrottle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "gateway",
			Name:      "actuator_throttle_pct",
			Help:      "Last actuator command throttle percentage.",
		}),

		ActuatorHeading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "gateway",
			Name:      "actuator_heading_deg",
			Help:      "Last actuator command heading in degrees.",
		}),

		RouteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "planner",
			Name:      "route_queue_depth",
			Help:      "Current number of queued waypoints.",
		}),

		WaypointsReachedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "truckctl",
			Subsystem: "planner",
			Name:      "waypoints_reached_total",
			Help:      "Total waypoints popped on arrival.",
		}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "truckctl",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		StorageLedgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "storage",
			Name:      "ledger_entries",
			Help:      "Current number of audit ledger entries in BoltDB.",
		}),

		AgentUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "truckctl",
			Subsystem: "agent",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the agent started.",
		}),
	}

	reg.MustRegister(
		m.SensorFramesPublishedTotal,
		m.HubHistoryDepth,
		m.FaultLatchActive,
		m.FaultLatchCode,
		m.CASOverridesTotal,
		m.StateTransitionsTotal,
		m.RearmsTotal,
		m.ControlLoopLatency,
		m.CorneringSlowdownFactor,
		m.ActuatorThrottle,
		m.ActuatorHeading,
		m.RouteQueueDepth,
		m.WaypointsReachedTotal,
		m.StorageWriteLatency,
		m.StorageLedgerEntries,
		m.AgentUptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on the given address.
// Blocks until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// updateUptime periodically updates the AgentUptimeSeconds gauge.
func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.AgentUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
