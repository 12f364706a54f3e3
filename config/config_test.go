package config

import (
	"os"
	"path/filepath"
	"testing"

	"custodia/native/arbitration"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custodia.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ArbitrationParams().SelectionStrategy != arbitration.SelectionWeighted {
		t.Fatalf("default strategy must be weighted")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.ListenAddress != cfg.ListenAddress {
		t.Fatalf("reload drifted: %q vs %q", reloaded.ListenAddress, cfg.ListenAddress)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = " " }},
		{"inverted durations", func(c *Config) { c.Escrow.MaxDurationSecs = c.Escrow.MinDurationSecs - 1 }},
		{"zero reveal window", func(c *Config) { c.Escrow.RevealWindowSecs = 0 }},
		{"stake basis overflow", func(c *Config) { c.Escrow.DisputeStakeBasis = 10_001 }},
		{"rating weight overflow", func(c *Config) { c.Arbitration.RatingWeight = 101 }},
		{"zero dispute timeout", func(c *Config) { c.Arbitration.DisputeTimeoutSecs = 0 }},
		{"unknown strategy", func(c *Config) { c.Arbitration.SelectionStrategy = "roulette" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}
