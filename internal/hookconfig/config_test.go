package hookconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NonexistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load with nonexistent file should not error: %v", err)
	}

	if cfg.Paths.IntentRegistry != ".orchestration/active_intents.yaml" {
		t.Errorf("default intentRegistry: got %q", cfg.Paths.IntentRegistry)
	}
	if cfg.Paths.TraceLedger != ".orchestration/agent_trace.jsonl" {
		t.Errorf("default traceLedger: got %q", cfg.Paths.TraceLedger)
	}
	if cfg.Dashboard.Host != "127.0.0.1" || cfg.Dashboard.Port != 4100 {
		t.Errorf("default dashboard bind: got %s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("default dashboard: expected enabled")
	}
	if !cfg.Ledger.UseIndex {
		t.Error("default ledger.useIndex: expected true")
	}
	if cfg.Ledger.LockTimeoutMs != 50 {
		t.Errorf("default lockTimeoutMs: expected 50, got %d", cfg.Ledger.LockTimeoutMs)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
paths:
  intentRegistry: custom/intents.yaml
dashboard:
  enabled: false
  port: 9090
ledger:
  useIndex: false
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Paths.IntentRegistry != "custom/intents.yaml" {
		t.Errorf("intentRegistry: got %q", cfg.Paths.IntentRegistry)
	}
	if cfg.Dashboard.Enabled {
		t.Error("dashboard.enabled: expected false")
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("dashboard.port: expected 9090, got %d", cfg.Dashboard.Port)
	}
	if cfg.Ledger.UseIndex {
		t.Error("ledger.useIndex: expected false")
	}
	// Unset fields retain defaults.
	if cfg.Paths.TraceLedger != ".orchestration/agent_trace.jsonl" {
		t.Errorf("traceLedger should retain default, got %q", cfg.Paths.TraceLedger)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`{{{invalid yaml`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: *applyDefaults(), wantErr: false},
		{
			name: "empty intent registry path",
			cfg: Config{
				Paths:     PathsConfig{IntentRegistry: "", TraceLedger: "x"},
				Dashboard: DashboardConfig{Host: "127.0.0.1", Port: 4100},
			},
			wantErr: true,
		},
		{
			name: "empty trace ledger path",
			cfg: Config{
				Paths:     PathsConfig{IntentRegistry: "x", TraceLedger: ""},
				Dashboard: DashboardConfig{Host: "127.0.0.1", Port: 4100},
			},
			wantErr: true,
		},
		{
			name: "empty dashboard host",
			cfg: Config{
				Paths:     PathsConfig{IntentRegistry: "x", TraceLedger: "y"},
				Dashboard: DashboardConfig{Host: "", Port: 4100},
			},
			wantErr: true,
		},
		{
			name: "port 0",
			cfg: Config{
				Paths:     PathsConfig{IntentRegistry: "x", TraceLedger: "y"},
				Dashboard: DashboardConfig{Host: "127.0.0.1", Port: 0},
			},
			wantErr: true,
		},
		{
			name: "port 65536",
			cfg: Config{
				Paths:     PathsConfig{IntentRegistry: "x", TraceLedger: "y"},
				Dashboard: DashboardConfig{Host: "127.0.0.1", Port: 65536},
			},
			wantErr: true,
		},
		{
			name: "negative lock timeout",
			cfg: Config{
				Paths:     PathsConfig{IntentRegistry: "x", TraceLedger: "y"},
				Dashboard: DashboardConfig{Host: "127.0.0.1", Port: 4100},
				Ledger:    LedgerConfig{LockTimeoutMs: -1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(&tt.cfg)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWriteDefault_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteDefault: %v", err)
	}
	if cfg.Dashboard.Port != 4100 {
		t.Errorf("roundtrip port: expected 4100, got %d", cfg.Dashboard.Port)
	}
	if !cfg.Ledger.UseIndex {
		t.Error("roundtrip useIndex: expected true")
	}
}
