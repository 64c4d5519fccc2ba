package admin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
}

func TestValidate_RejectsBrokenSchedules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero frequency", func(c *Config) { c.NotarizeFrequency = 0 }},
		{"negative frequency", func(c *Config) { c.NotarizeFrequency = -1 }},
		{"zero min fee", func(c *Config) { c.NotarizeMinFee = 0 }},
		{"max below min", func(c *Config) { c.NotarizeMaxFee = c.NotarizeMinFee - 1 }},
		{"negative bump rate", func(c *Config) { c.NotarizeBumpRate = -1 }},
		{"negative credits", func(c *Config) { c.DefaultCredits = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfig_AppliesDefaultsForAbsentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "notarize_frequency = 10\nnotarize_min_fee = 3\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NotarizeFrequency != 10 || cfg.NotarizeMinFee != 3 {
		t.Fatalf("explicit keys not applied: %+v", cfg)
	}
	def := DefaultConfig()
	if cfg.NotarizeMaxFee != def.NotarizeMaxFee || cfg.NotarizeBumpRate != def.NotarizeBumpRate {
		t.Fatalf("defaults not applied for absent keys: %+v", cfg)
	}
}

func TestLoadConfig_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("notarize_frequency = -4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing file, got %v", err)
	}
}
