// Package hookconfig handles loading, validating, and writing HookGuard's
// workspace configuration from .orchestration/config.yaml.
//
// The config defines:
//   - Which paths within the registry and ledger live
//   - Dashboard bind address and enablement
//   - Ledger locking and indexing tunables
//
// See design doc §2.1 for the full YAML schema.
package hookconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level HookGuard workspace configuration. Loaded from
// .orchestration/config.yaml, with sensible defaults for fields that are
// not explicitly set.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// PathsConfig locates HookGuard's on-disk state, all relative to the
// workspace root unless absolute.
type PathsConfig struct {
	IntentRegistry string `yaml:"intentRegistry"`
	TraceLedger    string `yaml:"traceLedger"`
	LedgerIndex    string `yaml:"ledgerIndex"`
}

// DashboardConfig controls the web dashboard served at /dashboard.
// Default: 127.0.0.1:4100 (loopback only — never bind to 0.0.0.0).
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LedgerConfig tunes the TraceLedger's locking and indexing behavior.
type LedgerConfig struct {
	LockTimeoutMs int  `yaml:"lockTimeoutMs"`
	UseIndex      bool `yaml:"useIndex"`
}

// Load reads and parses config.yaml from the given path. If the file
// doesn't exist, returns defaults (not an error). Invalid YAML or
// validation failures return an error.
func Load(path string) (*Config, error) {
	cfg := applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file — use defaults. Normal on first run before
			// `hookguard intents init` scaffolds the .orchestration
			// directory.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes a default config.yaml with all fields populated
// and a comment header. Used by `hookguard intents init` when no config
// file exists yet.
func WriteDefault(path string) error {
	cfg := applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# HookGuard workspace configuration.
# See design doc Section 2 for details.
#
# paths:
#   intentRegistry: Path to the active intent registry (default: .orchestration/active_intents.yaml)
#   traceLedger:    Path to the append-only trace ledger (default: .orchestration/agent_trace.jsonl)
#   ledgerIndex:    Path to the SQLite query index (default: .orchestration/agent_trace.db)
#
# dashboard:
#   enabled: Serve the live-feed dashboard at /dashboard
#   host:    Bind address (default: 127.0.0.1, loopback only)
#   port:    Listen port (default: 4100)
#
# ledger:
#   lockTimeoutMs: Max time to wait for the append lock before failing closed
#   useIndex:      Maintain the SQLite query projection alongside the JSONL ledger

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

// applyDefaults returns a Config with all fields set to their default
// values. Design doc §2.1 defines these defaults.
func applyDefaults() *Config {
	return &Config{
		Paths: PathsConfig{
			IntentRegistry: ".orchestration/active_intents.yaml",
			TraceLedger:    ".orchestration/agent_trace.jsonl",
			LedgerIndex:    ".orchestration/agent_trace.db",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    4100,
		},
		Ledger: LedgerConfig{
			LockTimeoutMs: 50,
			UseIndex:      true,
		},
	}
}

// validate checks the config for logical errors after parsing.
func validate(cfg *Config) error {
	if cfg.Paths.IntentRegistry == "" {
		return fmt.Errorf("paths.intentRegistry must not be empty")
	}
	if cfg.Paths.TraceLedger == "" {
		return fmt.Errorf("paths.traceLedger must not be empty")
	}
	if cfg.Dashboard.Host == "" {
		return fmt.Errorf("dashboard.host must not be empty")
	}
	if cfg.Dashboard.Port < 1 || cfg.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d out of range (1-65535)", cfg.Dashboard.Port)
	}
	if cfg.Ledger.LockTimeoutMs < 0 {
		return fmt.Errorf("ledger.lockTimeoutMs must be non-negative")
	}
	return nil
}
