// Package config provides configuration loading, validation, and hot-reload
// for the truck control agent.
//
// Configuration file: /etc/truckctl/config.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - Agent listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml.
//   - The reloaded values are logged but not applied to the running agent;
//     every change (log level, mission directory, metrics address, storage
//     path, driver mode, operator socket path) takes effect on restart.
//   - If the new config is invalid, the old config remains active and an
//     error is logged. The agent does NOT crash on invalid hot-reload config.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (retention days, token TTL, sample ratio).
//   - Invalid config on startup: agent refuses to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the build via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for the truck agent.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1".
	SchemaVersion string `yaml:"schema_version"`

	// TruckID identifies which vehicle this agent instance serves.
	TruckID int `yaml:"truck_id"`

	// Driver selects and configures the SensorPort/ActuatorPort
	// implementation.
	Driver DriverConfig `yaml:"driver"`

	// Storage configures the BoltDB persistent store.
	Storage StorageConfig `yaml:"storage"`

	// Operator configures the operator command Unix socket.
	Operator OperatorConfig `yaml:"operator"`

	// Mission configures the file-based mission source.
	Mission MissionConfig `yaml:"mission"`

	// Observability configures metrics, tracing, and logging.
	Observability ObservabilityConfig `yaml:"observability"`
}

// DriverConfig selects between the in-process physics stand-in and a real
// wire-protocol driver, and seeds the stand-in when selected.
type DriverConfig struct {
	// Mode is "sim" (simdriver) or "live" (a real driver, wired outside
	// this module). Default: "sim".
	Mode string `yaml:"mode"`

	// StartX, StartY seed the simdriver's initial pose.
	StartX float64 `yaml:"start_x"`
	StartY float64 `yaml:"start_y"`

	// Seed is the simdriver's PRNG seed, for reproducible scenario runs.
	Seed int64 `yaml:"seed"`
}

// StorageConfig holds BoltDB parameters.
type StorageConfig struct {
	// DBPath is the absolute path to the BoltDB file.
	// Default: /var/lib/truckctl/truckctl.db.
	DBPath string `yaml:"db_path"`

	// RetentionDays is the audit ledger retention period. Default: 30.
	RetentionDays int `yaml:"retention_days"`
}

// OperatorConfig holds operator override parameters.
type OperatorConfig struct {
	// SocketPath is the Unix domain socket path for operator commands.
	// Default: /run/truckctl/operator.sock.
	SocketPath string `yaml:"socket_path"`

	// Enabled controls whether the operator socket is active.
	Enabled bool `yaml:"enabled"`

	// JWTSecret is the HMAC signing key for operator bearer tokens. Must
	// be at least 32 characters.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is how long a minted operator token remains valid.
	// Default: 15m.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// MissionConfig holds the file-based mission source parameters.
type MissionConfig struct {
	// Dir is the directory watched for mission JSON files.
	// Default: /var/lib/truckctl/missions.
	Dir string `yaml:"dir"`
}

// ObservabilityConfig holds metrics, tracing, and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// TracingEnabled gates OpenTelemetry tracer provider creation.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TraceSampleRatio is the ratio-based sampler's sample fraction,
	// range [0.0, 1.0]. Default: 0.1.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	LogFormat string `yaml:"log_format"`
}

// DefaultDBPath is the default BoltDB file location.
const DefaultDBPath = "/var/lib/truckctl/truckctl.db"

// DefaultMissionDir is the default mission-file watch directory.
const DefaultMissionDir = "/var/lib/truckctl/missions"

// DefaultSocketPath is the default operator command socket path.
const DefaultSocketPath = "/run/truckctl/operator.sock"

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	return Config{
		SchemaVersion: "1",
		TruckID:       1,
		Driver: DriverConfig{
			Mode:   "sim",
			StartX: 15,
			StartY: 15,
			Seed:   1,
		},
		Storage: StorageConfig{
			DBPath:        DefaultDBPath,
			RetentionDays: 30,
		},
		Operator: OperatorConfig{
			Enabled:    true,
			SocketPath: DefaultSocketPath,
			TokenTTL:   15 * time.Minute,
		},
		Mission: MissionConfig{
			Dir: DefaultMissionDir,
		},
		Observability: ObservabilityConfig{
			MetricsAddr:      "127.0.0.1:9091",
			TracingEnabled:   false,
			TraceSampleRatio: 0.1,
			LogLevel:         "info",
			LogFormat:        "json",
		},
	}
}

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness, accumulating every
// violation found rather than stopping at the first (multierr.Append,
// replacing a hand-rolled []string accumulator).
func Validate(cfg *Config) error {
	var err error

	if cfg.SchemaVersion != "1" {
		err = multierr.Append(err, fmt.Errorf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.TruckID < 0 {
		err = multierr.Append(err, fmt.Errorf("truck_id must be >= 0, got %d", cfg.TruckID))
	}
	if cfg.Driver.Mode != "sim" && cfg.Driver.Mode != "live" {
		err = multierr.Append(err, fmt.Errorf("driver.mode must be \"sim\" or \"live\", got %q", cfg.Driver.Mode))
	}
	if cfg.Storage.DBPath == "" {
		err = multierr.Append(err, fmt.Errorf("storage.db_path must not be empty"))
	}
	if cfg.Storage.RetentionDays < 1 {
		err = multierr.Append(err, fmt.Errorf("storage.retention_days must be >= 1, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Operator.Enabled {
		if len(cfg.Operator.JWTSecret) < 32 {
			err = multierr.Append(err, fmt.Errorf("operator.jwt_secret must be at least 32 characters when operator.enabled is true"))
		}
		if cfg.Operator.SocketPath == "" {
			err = multierr.Append(err, fmt.Errorf("operator.socket_path must not be empty when operator.enabled is true"))
		}
		if cfg.Operator.TokenTTL < time.Second {
			err = multierr.Append(err, fmt.Errorf("operator.token_ttl must be >= 1s, got %s", cfg.Operator.TokenTTL))
		}
	}
	if cfg.Mission.Dir == "" {
		err = multierr.Append(err, fmt.Errorf("mission.dir must not be empty"))
	}
	if cfg.Observability.TraceSampleRatio < 0.0 || cfg.Observability.TraceSampleRatio > 1.0 {
		err = multierr.Append(err, fmt.Errorf("observability.trace_sample_ratio must be in [0.0, 1.0], got %f", cfg.Observability.TraceSampleRatio))
	}
	if cfg.Observability.MetricsAddr == "" {
		err = multierr.Append(err, fmt.Errorf("observability.metrics_addr must not be empty"))
	}

	return err
}
