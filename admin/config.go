package admin

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ErrConfig marks configuration rejected at startup. Callers fail fast
// rather than running with a fee schedule that cannot terminate sensibly.
var ErrConfig = errors.New("admin: invalid configuration")

// Config is the notarization schedule and fee policy.
//
// Fees are in ledger fee units (sat/vB for a Bitcoin-family archiver). The
// bump rate is applied per whole hour a round is late, producing a monotonic
// fee ratchet capped at NotarizeMaxFee: the machine refuses to exceed the
// operator's ceiling, trading liveness for cost-boundedness.
type Config struct {
	// NotarizeFrequency is the target interval between rounds, in hours.
	NotarizeFrequency int64 `toml:"notarize_frequency"`
	// NotarizeMinFee is the fee for an on-time round.
	NotarizeMinFee int64 `toml:"notarize_min_fee"`
	// NotarizeMaxFee is the replace-by-fee ceiling.
	NotarizeMaxFee int64 `toml:"notarize_max_fee"`
	// NotarizeBumpRate is the fee increase per whole hour late.
	NotarizeBumpRate int64 `toml:"notarize_bump_rate"`
	// DefaultCredits is the starting balance for new and repaired agents.
	DefaultCredits int64 `toml:"default_credits"`
}

// DefaultConfig returns the stock schedule: daily rounds, 2 units minimum,
// bumping 2 units per late hour up to 64.
func DefaultConfig() Config {
	return Config{
		NotarizeFrequency: 24,
		NotarizeMinFee:    2,
		NotarizeMaxFee:    64,
		NotarizeBumpRate:  2,
		DefaultCredits:    100,
	}
}

// Validate rejects schedules that cannot work.
func (c Config) Validate() error {
	if c.NotarizeFrequency <= 0 {
		return fmt.Errorf("%w: notarize_frequency must be positive, got %d", ErrConfig, c.NotarizeFrequency)
	}
	if c.NotarizeMinFee <= 0 {
		return fmt.Errorf("%w: notarize_min_fee must be positive, got %d", ErrConfig, c.NotarizeMinFee)
	}
	if c.NotarizeMaxFee < c.NotarizeMinFee {
		return fmt.Errorf("%w: notarize_max_fee %d below notarize_min_fee %d", ErrConfig, c.NotarizeMaxFee, c.NotarizeMinFee)
	}
	if c.NotarizeBumpRate < 0 {
		return fmt.Errorf("%w: notarize_bump_rate must not be negative, got %d", ErrConfig, c.NotarizeBumpRate)
	}
	if c.DefaultCredits < 0 {
		return fmt.Errorf("%w: default_credits must not be negative, got %d", ErrConfig, c.DefaultCredits)
	}
	return nil
}

// LoadConfig reads a TOML config file, applying defaults for absent keys and
// validating the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
