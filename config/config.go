package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// RatioMode selects the paired-amount validation variant for a deployment.
const (
	RatioModeFixed  = "fixed"
	RatioModeOracle = "oracle"
)

// StakingConfig holds the governance-controlled staking terms.
type StakingConfig struct {
	ApyBps                uint64 `toml:"ApyBps"`
	LockPeriodSeconds     int64  `toml:"LockPeriodSeconds"`
	RewardIntervalSeconds int64  `toml:"RewardIntervalSeconds"`
	// RatioMode is "fixed" or "oracle".
	RatioMode string `toml:"RatioMode"`
	// RatioWad is the asset-B-per-asset-A ratio in 1e18 fixed point,
	// expressed as a decimal string. Used by the fixed variant.
	RatioWad string `toml:"RatioWad"`
	// OracleMaxAgeSeconds bounds quote staleness for the oracle variant.
	// Zero disables the age check.
	OracleMaxAgeSeconds int64 `toml:"OracleMaxAgeSeconds"`
	Paused              bool  `toml:"Paused"`
}

// RateLimitConfig throttles the HTTP surface.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Config is the daemon configuration loaded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DatabasePath  string `toml:"DatabasePath"`
	Environment   string `toml:"Environment"`
	// LogFile enables rotated file logging when set; empty logs to stdout.
	LogFile string `toml:"LogFile"`
	// AdminTokens authorize the funding/withdraw/pause endpoints.
	AdminTokens []string `toml:"AdminTokens"`

	Staking   StakingConfig   `toml:"staking"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
}

// Default returns the development defaults: a 10% APY, 180 day lock, 30 day
// claim cadence and a 2:1 fixed ratio.
func Default() *Config {
	return &Config{
		ListenAddress: ":8645",
		DatabasePath:  "duostake.db",
		Environment:   "dev",
		Staking: StakingConfig{
			ApyBps:                1000,
			LockPeriodSeconds:     15_552_000,
			RewardIntervalSeconds: 2_592_000,
			RatioMode:             RatioModeFixed,
			RatioWad:              "2000000000000000000",
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600, Burst: 60},
	}
}

// Load reads the configuration from path, creating the file with defaults
// when it does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded.String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Ratio parses the fixed-ratio value. Only meaningful in fixed mode.
func (s StakingConfig) Ratio() (*big.Int, error) {
	trimmed := strings.TrimSpace(s.RatioWad)
	if trimmed == "" {
		return nil, fmt.Errorf("config: RatioWad not set")
	}
	ratio, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || ratio.Sign() <= 0 {
		return nil, fmt.Errorf("config: invalid RatioWad: %q", s.RatioWad)
	}
	return ratio, nil
}

// Validate performs static validation of the daemon configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must be set")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("config: DatabasePath must be set")
	}
	s := c.Staking
	if s.ApyBps == 0 || s.ApyBps > 100_000 {
		return fmt.Errorf("config: ApyBps out of range: %d", s.ApyBps)
	}
	if s.LockPeriodSeconds <= 0 {
		return fmt.Errorf("config: LockPeriodSeconds must be positive")
	}
	if s.RewardIntervalSeconds <= 0 || s.RewardIntervalSeconds > s.LockPeriodSeconds {
		return fmt.Errorf("config: RewardIntervalSeconds must be positive and within the lock period")
	}
	switch s.RatioMode {
	case RatioModeFixed:
		if _, err := s.Ratio(); err != nil {
			return err
		}
	case RatioModeOracle:
		if s.OracleMaxAgeSeconds < 0 {
			return fmt.Errorf("config: OracleMaxAgeSeconds must not be negative")
		}
	default:
		return fmt.Errorf("config: unknown RatioMode: %q", s.RatioMode)
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate limit values must not be negative")
	}
	return nil
}
