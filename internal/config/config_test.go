package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Guardian.Interval != 300*time.Second {
		t.Errorf("Expected default interval 300s, got %s", cfg.Guardian.Interval)
	}
	if cfg.Guardian.BalanceShiftThreshold != 0.20 {
		t.Errorf("Expected default threshold 0.20, got %v", cfg.Guardian.BalanceShiftThreshold)
	}
	if cfg.Storage.Type != StorageMemory {
		t.Errorf("Expected memory storage, got %s", cfg.Storage.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
guardian:
  interval: 45s
  workers: 8
  balance_shift_threshold: 0.5
watchlist:
  programs:
    - id: JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4
      label: Jupiter v6
      thresholds:
        balance_shift: 0.1
sinks:
  webhook_url: https://hooks.example.com/guardian
`)

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Guardian.Interval != 45*time.Second {
		t.Errorf("Expected interval 45s, got %s", cfg.Guardian.Interval)
	}
	if cfg.Guardian.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Guardian.Workers)
	}
	if cfg.Guardian.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts to survive, got %d", cfg.Guardian.MaxAttempts)
	}
	if len(cfg.Watchlist.Programs) != 1 {
		t.Fatalf("Expected 1 program, got %d", len(cfg.Watchlist.Programs))
	}
	entry := cfg.Watchlist.Programs[0]
	if entry.Label != "Jupiter v6" {
		t.Errorf("Expected label Jupiter v6, got %q", entry.Label)
	}
	if entry.Thresholds == nil || entry.Thresholds.BalanceShift == nil || *entry.Thresholds.BalanceShift != 0.1 {
		t.Errorf("Expected balance shift override 0.1, got %+v", entry.Thresholds)
	}
	if cfg.Sinks.WebhookURL != "https://hooks.example.com/guardian" {
		t.Errorf("Unexpected webhook url %q", cfg.Sinks.WebhookURL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if !gerrors.Is(err, gerrors.ErrConfigInvalid) {
		t.Errorf("Expected config error, got %v", err)
	}
}

func TestRPCEnvironmentOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example.com")

	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if got := cfg.Solana.GetRPCEndpoint(); got != "https://rpc.example.com" {
		t.Errorf("Expected env endpoint, got %s", got)
	}
}

func TestGetRPCEndpointByNetwork(t *testing.T) {
	tests := []struct {
		network string
		want    string
	}{
		{"mainnet", "https://api.mainnet-beta.solana.com"},
		{"devnet", "https://api.devnet.solana.com"},
		{"localnet", "http://localhost:8899"},
		{"", "https://api.mainnet-beta.solana.com"},
	}
	for _, tt := range tests {
		c := SolanaConfig{Network: tt.network}
		if got := c.GetRPCEndpoint(); got != tt.want {
			t.Errorf("network %q: got %s, want %s", tt.network, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Guardian.Interval = 0 }},
		{"no workers", func(c *Config) { c.Guardian.Workers = 0 }},
		{"no attempts", func(c *Config) { c.Guardian.MaxAttempts = 0 }},
		{"negative threshold", func(c *Config) { c.Guardian.BalanceShiftThreshold = -1 }},
		{"retry delays", func(c *Config) { c.Guardian.RetryMaxDelay = c.Guardian.RetryBaseDelay / 2 }},
		{"storage", func(c *Config) { c.Storage.Type = "sqlite" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !gerrors.IsFatal(err) {
				t.Errorf("Expected fatal config error, got %v", err)
			}
		})
	}
}
