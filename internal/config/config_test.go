package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://polygon-rpc.example"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate with an RPC URL: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Scanner.Window = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"unknown mode", "unknown log_level", "window must be >= 1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateServeModeNeedsNoRPC(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("serve mode should not require rpc_url: %v", err)
	}
}

func TestValidateScoringWeightsMustSumToOne(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://rpc"
	cfg.Scoring.ROIWeight = 0.9

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "weights must sum to 1.0") {
		t.Fatalf("expected weight-sum failure, got %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "serve"
log_level = "debug"

[scanner]
window = 25

[gamma]
refresh_interval = "30m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "serve" || cfg.LogLevel != "debug" {
		t.Errorf("mode/log_level = %s/%s", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Scanner.Window != 25 {
		t.Errorf("window = %d, want 25", cfg.Scanner.Window)
	}
	if cfg.Gamma.RefreshInterval.Duration != 30*time.Minute {
		t.Errorf("refresh interval = %v, want 30m", cfg.Gamma.RefreshInterval.Duration)
	}
	// Untouched defaults survive.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Postgres.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POLYTRACKER_CHAIN_RPC_URL", "https://env-rpc.example")
	t.Setenv("POLYTRACKER_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("POLYTRACKER_SCANNER_MIN_LOGS", "250")

	path := writeTOML(t, `
[chain]
rpc_url = "https://file-rpc.example"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Chain.RPCURL != "https://env-rpc.example" {
		t.Errorf("rpc_url = %s, env must win over file", cfg.Chain.RPCURL)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Errorf("password override not applied")
	}
	if cfg.Scanner.MinLogs != 250 {
		t.Errorf("min_logs = %d, want 250", cfg.Scanner.MinLogs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("duration = %v, want 90s", d.Duration)
	}
	text, err := d.MarshalText()
	if err != nil || string(text) != "1m30s" {
		t.Errorf("marshal = %s, %v", text, err)
	}
}
