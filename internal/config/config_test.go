package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	p := cfg.ScanParams()
	if p.Timeframe != "1h" || p.Period != "3mo" || p.MinGapPct != 3.0 || p.ProximityLimitPct != 0.4 {
		t.Errorf("unexpected default params %+v", p)
	}
	if p.FastWindow != 9 || p.SlowWindow != 26 || p.MinDataPoints != 30 {
		t.Errorf("unexpected default windows %+v", p)
	}
	if cfg.Scan.Workers != 8 || cfg.History.MaxReports != 3 || cfg.Scan.FetchTimeout != 10*time.Second {
		t.Errorf("unexpected defaults %+v", cfg.Scan)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
scan:
  timeframe: 4h
  min_gap_pct: 0
  fetch_timeout: 5s
universe:
  symbols: [TCS.NS, INFY.NS]
history:
  backend: none
`)
	t.Setenv("SCAN_WORKERS", "16")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	p := cfg.ScanParams()
	if p.Timeframe != "4h" || p.MinGapPct != 0 {
		t.Errorf("explicit zero gap must survive defaults: %+v", p)
	}
	if cfg.Scan.FetchTimeout != 5*time.Second || cfg.Scan.Workers != 16 {
		t.Errorf("unexpected scan section %+v", cfg.Scan)
	}
	if len(cfg.Universe.Symbols) != 2 || !cfg.TelegramEnabled() {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("SCAN_MIN_GAP", "abc")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestValidate_RejectsNaNEnvGap(t *testing.T) {
	t.Setenv("SCAN_MIN_GAP", "NaN")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"gap over 100", "scan:\n  min_gap_pct: 150\n"},
		{"negative proximity", "scan:\n  proximity_limit_pct: -1\n"},
		{"NaN gap", "scan:\n  min_gap_pct: .nan\n"},
		{"NaN proximity", "scan:\n  proximity_limit_pct: .nan\n"},
		{"infinite gap", "scan:\n  min_gap_pct: .inf\n"},
		{"unknown timeframe", "scan:\n  timeframe: 2h\n"},
		{"negative workers", "scan:\n  workers: -2\n"},
		{"rest without url", "data_source:\n  provider: rest\n"},
		{"redis without addr", "history:\n  backend: redis\n"},
		{"negative retention", "history:\n  max_reports: -1\n"},
		{"half telegram", "telegram:\n  bot_token: x\n"},
	}
	for _, tt := range tests {
		cfg, err := Load(writeConfig(t, tt.yaml))
		if err != nil {
			t.Fatalf("%s: load: %v", tt.name, err)
		}
		if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", tt.name, err)
		}
	}
}
