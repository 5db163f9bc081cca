// Package config loads the single JSON document that parameterizes a
// dispatchd run: batching policy, dispatch policy, oracle cache settings,
// and the audit log location (§4.5 of SPEC_FULL.md).
package config

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"github.com/tangiraiC/passl-dispatch/pkg/batching"
	"github.com/tangiraiC/passl-dispatch/pkg/dispatch"
)

// DefaultConfigFile is the conventional config file name for dispatchd.
const DefaultConfigFile = "dispatchd.json"

// Config is the top-level application configuration.
type Config struct {
	Batching batching.Policy `json:"batching,omitempty"`
	Dispatch dispatch.Policy `json:"dispatch,omitempty"`
	Routing  RoutingConfig   `json:"routing,omitempty"`
	Audit    AuditConfig     `json:"audit,omitempty"`
	Logging  LoggingConfig   `json:"logging,omitempty"`
	Cycle    CycleConfig     `json:"cycle,omitempty"`
}

// RoutingConfig configures the TimeMatrixOracle.
type RoutingConfig struct {
	// AverageSpeedMetersPerSec drives the default haversine-based oracle.
	AverageSpeedMetersPerSec float64 `json:"average_speed_meters_per_sec,omitempty"`
	// CacheDBPath, if set, persists the duration cache to a BoltDB file at
	// this path across process restarts. Empty means process-local only.
	CacheDBPath string `json:"cache_db_path,omitempty"`
}

// AuditConfig configures the dispatch-event audit log.
type AuditConfig struct {
	// SQLiteDSN is the gorm sqlite data source, e.g. "dispatch_audit.db".
	SQLiteDSN string `json:"sqlite_dsn,omitempty"`
}

// LoggingConfig configures the zerolog structured logger.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `json:"level,omitempty"`
	// Pretty enables zerolog's human-readable console writer instead of
	// newline-delimited JSON; useful for local runs, never for production.
	Pretty bool `json:"pretty,omitempty"`
}

// CycleConfig configures the dispatch-cycle pipeline runner.
type CycleConfig struct {
	// TickIntervalMs is how often a new cycle is started.
	TickIntervalMs int `json:"tick_interval_ms,omitempty"`
	// ReadyHorizonSeconds and MaxRawAgeSeconds parameterize
	// OrderQueue.AdvanceToBatching.
	ReadyHorizonSeconds int `json:"ready_horizon_seconds,omitempty"`
	MaxRawAgeSeconds    int `json:"max_raw_age_seconds,omitempty"`
	// MaxBatchingOrdersPerTick bounds how many RAW orders convert to
	// BATCHING in a single cycle; 0 means unbounded.
	MaxBatchingOrdersPerTick int `json:"max_batching_orders_per_tick,omitempty"`
}

// Default returns a Config populated with every component's documented
// defaults.
func Default() Config {
	return Config{
		Batching: batching.DefaultPolicy(),
		Dispatch: dispatch.DefaultPolicy(),
		Routing: RoutingConfig{
			AverageSpeedMetersPerSec: 8.3,
		},
		Audit: AuditConfig{
			SQLiteDSN: "dispatch_audit.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Cycle: CycleConfig{
			TickIntervalMs:           2000,
			ReadyHorizonSeconds:      60,
			MaxRawAgeSeconds:         180,
			MaxBatchingOrdersPerTick: 0,
		},
	}
}

// Load reads and decodes a Config from a JSON file at path, starting from
// Default() so an omitted section keeps its documented defaults rather
// than zero values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(cfg Config, path string) error {
	data, err := sonic.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks every embedded policy and rejects an unusable config
// before the dispatch-cycle pipeline starts, per this codebase's
// fail-fast-on-policy convention (§7).
func (c Config) Validate() error {
	if err := c.Batching.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if c.Cycle.TickIntervalMs <= 0 {
		return fmt.Errorf("config: cycle.tick_interval_ms must be positive, got %d", c.Cycle.TickIntervalMs)
	}
	return nil
}
