// Package main — cmd/truckctl/main.go
//
// truckctl agent entrypoint.
//
// Startup sequence:
//  1. Load and validate config from /etc/truckctl/config.yaml.
//  2. Initialise structured logger (zap, configurable level/format).
//  3. Open BoltDB storage.
//  4. Prune stale ledger entries.
//  5. Start the mission-file watcher and restore the last persisted
//     mission, if any.
//  6. Start Prometheus metrics server.
//  7. Start the OpenTelemetry tracer provider, if enabled.
//  8. Wire the sensor driver (simdriver in "sim" mode).
//  9. Start the fixed-rate worker tasks: FaultMonitor, CollisionAvoidance,
//     SensorTask, RoutePlanner, CommandLogic, NavigationController, the
//     actuation gateway.
// 10. Start the operator command socket, if enabled.
// 11. Register SIGHUP handler for config hot-reload.
// 12. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel root context (propagates to all worker goroutines).
//  2. Wait for workers to drain (max 5s) — the actuation gateway publishes
//     a final zero-throttle, fault=true command as part of this drain.
//  3. Persist the planner's current route.
//  4. Close BoltDB.
//  5. Flush logger.
//  6. Exit 0.
//
// On storage or config failure: exit 1 immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/haulctl/truckctl/internal/cas"
	"github.com/haulctl/truckctl/internal/commandlogic"
	"github.com/haulctl/truckctl/internal/config"
	"github.com/haulctl/truckctl/internal/faultmonitor"
	"github.com/haulctl/truckctl/internal/gateway"
	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/navigation"
	"github.com/haulctl/truckctl/internal/observability"
	"github.com/haulctl/truckctl/internal/planner"
	"github.com/haulctl/truckctl/internal/safety"
	"github.com/haulctl/truckctl/internal/sensor"
	"github.com/haulctl/truckctl/internal/storage"
	"github.com/haulctl/truckctl/internal/transport/opsock"
	"github.com/haulctl/truckctl/internal/transport/simdriver"
)

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	configPath := flag.String("config", "/etc/truckctl/config.yaml", "Path to config.yaml")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("truckctl %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	// ── Step 1: Load config ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	// ── Step 2: Initialise logger ─────────────────────────────────────────────
	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("truckctl starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.Int("truck_id", cfg.TruckID),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Step 3: Open BoltDB ───────────────────────────────────────────────────
	db, err := storage.Open(cfg.Storage.DBPath, cfg.Storage.RetentionDays)
	if err != nil {
		log.Fatal("BoltDB open failed", zap.Error(err),
			zap.String("path", cfg.Storage.DBPath))
	}
	defer db.Close() //nolint:errcheck
	log.Info("BoltDB opened", zap.String("path", cfg.Storage.DBPath))

	// ── Step 4: Prune stale ledger entries ────────────────────────────────────
	pruned, err := db.PruneOldLedgerEntries()
	if err != nil {
		log.Warn("ledger pruning failed", zap.Error(err))
	} else {
		log.Info("ledger pruned", zap.Int("deleted", pruned))
	}

	// ── Step 5: Mission watcher, then restore last persisted mission ─────────
	// The watcher must exist before the restored file is written: FileSource
	// only loads files on the write/create events it observes.
	missionSource, err := planner.NewFileSource(cfg.Mission.Dir, log)
	if err != nil {
		log.Fatal("mission source init failed", zap.Error(err))
	}
	defer missionSource.Close() //nolint:errcheck

	if route, found, err := db.GetCurrentRoute(); err != nil {
		log.Warn("mission restore failed", zap.Error(err))
	} else if found {
		missionPath, writeErr := restoreMissionFile(cfg.Mission.Dir, route)
		if writeErr != nil {
			log.Warn("failed to re-stage restored mission", zap.Error(writeErr))
		} else {
			log.Info("mission restored from last run",
				zap.Int("waypoint_count", len(route.Route)),
				zap.String("path", missionPath))
		}
	}

	// ── Step 6: Prometheus metrics ─────────────────────────────────────────────
	metrics := observability.NewMetrics()
	if entries, err := db.ReadLedger(); err != nil {
		log.Warn("ledger entry count unavailable at startup", zap.Error(err))
	} else {
		metrics.StorageLedgerEntries.Set(float64(len(entries)))
	}
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	// ── Step 7: Tracer provider ────────────────────────────────────────────────
	if cfg.Observability.TracingEnabled {
		tp := observability.NewTracerProvider(cfg.Observability.TraceSampleRatio)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := observability.Shutdown(shutdownCtx, tp); err != nil {
				log.Warn("tracer provider shutdown failed", zap.Error(err))
			}
		}()
		log.Info("tracing enabled", zap.Float64("sample_ratio", cfg.Observability.TraceSampleRatio))
	}

	// ── Step 8: Wire the sensor/actuator driver ───────────────────────────────
	var driver *simdriver.Driver
	switch cfg.Driver.Mode {
	case "sim":
		driver = simdriver.New(cfg.Driver.StartX, cfg.Driver.StartY, cfg.Driver.Seed)
		go driver.Run(ctx)
		log.Info("simdriver started",
			zap.Float64("start_x", cfg.Driver.StartX),
			zap.Float64("start_y", cfg.Driver.StartY),
			zap.Int64("seed", cfg.Driver.Seed))
	default:
		log.Fatal("driver.mode not wired in this build", zap.String("mode", cfg.Driver.Mode))
	}

	// ── Shared plant state ─────────────────────────────────────────────────────
	h := hub.New()
	events := hub.NewEvents()
	validator := safety.NewValidator(log)

	// ── Step 9: Worker tasks ───────────────────────────────────────────────────
	faultTask := faultmonitor.New(driver, events, log, cfg.TruckID)
	go faultTask.Run(ctx)

	casTask := cas.New(h, events, driver, metrics, log)
	go casTask.Run(ctx)

	sensorTask := sensor.New(h, driver, metrics, log, cfg.TruckID)
	go sensorTask.Run(ctx)

	plannerTask := planner.New(h, missionSource, metrics, log)
	go plannerTask.Run(ctx)

	cmdLogicTask := commandlogic.New(h, events, validator, db, metrics, log)
	go cmdLogicTask.Run(ctx)

	navController := navigation.New(h, metrics, log)
	go navController.Run(ctx)

	gatewayTask := gateway.New(h, events, driver, metrics, log)
	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		gatewayTask.Run(ctx)
	}()

	log.Info("worker tasks started")

	// ── Step 10: Operator command socket ──────────────────────────────────────
	if cfg.Operator.Enabled {
		auth, err := opsock.NewAuthenticator(cfg.Operator.JWTSecret)
		if err != nil {
			log.Fatal("operator authenticator init failed", zap.Error(err))
		}
		opServer := opsock.NewServer(cfg.Operator.SocketPath, cfg.TruckID, h, events, auth, log)
		go func() {
			if err := opServer.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
				log.Error("operator socket server error", zap.Error(err))
			}
		}()
		log.Info("operator socket started", zap.String("path", cfg.Operator.SocketPath))
	} else {
		log.Info("operator socket disabled")
	}

	// ── Step 11: SIGHUP hot-reload ─────────────────────────────────────────────
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			// The reloaded config is validated and logged only; no field is
			// applied to the running agent, so every change takes effect on
			// restart.
			log.Info("config hot-reload successful",
				zap.String("new_log_level", newCfg.Observability.LogLevel),
				zap.String("new_mission_dir", newCfg.Mission.Dir))
		}
	}()

	// ── Step 12: Wait for shutdown signal ──────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()
	select {
	case <-shutdownTimer.C:
		log.Warn("shutdown drain timeout — forcing exit")
	case <-gatewayDone:
		log.Info("actuation gateway drained, final zero-throttle command published")
	}

	if route, found, err := lastKnownRoute(missionSource); err != nil {
		log.Warn("mission snapshot unavailable at shutdown", zap.Error(err))
	} else if found {
		if err := db.PutCurrentRoute(route); err != nil {
			log.Warn("failed to persist current mission", zap.Error(err))
		}
	}

	log.Info("truckctl shutdown complete")
}

// restoreMissionFile re-writes a persisted mission as a file in dir so
// FileSource picks it back up on the next poll, the same path a freshly
// delivered mission would take.
func restoreMissionFile(dir string, route hub.RouteMessage) (string, error) {
	return planner.WriteMissionFile(dir, "restored", route)
}

// lastKnownRoute asks the mission source for whatever it currently holds,
// so shutdown can persist it without the planner task threading its queue
// back out through a channel.
func lastKnownRoute(source *planner.FileSource) (hub.RouteMessage, bool, error) {
	return source.CurrentRoute()
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
