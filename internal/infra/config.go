package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the process consumes. Values load from YAML and
// may be overridden through environment variables before validation.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Auction struct {
		MinIncrement           string `yaml:"min_increment"`
		LastMinuteThresholdSec int    `yaml:"last_minute_threshold_sec"`
		ExtensionSec           int    `yaml:"extension_sec"`
		SweepIntervalSec       int    `yaml:"sweep_interval_sec"`
		TimeWarningIntervalSec int    `yaml:"time_warning_interval_sec"`
		SeedSampleItems        bool   `yaml:"seed_sample_items"`

		minIncrement decimal.Decimal
	} `yaml:"auction"`

	Archive struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"archive"`

	Images struct {
		Enabled  bool   `yaml:"enabled"`
		CacheDir string `yaml:"cache_dir"`
	} `yaml:"images"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate fills defaults and checks configuration validity. It must be
// called before the accessor methods are used.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}

	if c.Auction.MinIncrement == "" {
		c.Auction.MinIncrement = "1.00"
	}
	inc, err := decimal.NewFromString(c.Auction.MinIncrement)
	if err != nil {
		return fmt.Errorf("invalid min_increment %q: %w", c.Auction.MinIncrement, err)
	}
	if !inc.IsPositive() {
		return fmt.Errorf("min_increment must be positive, got %s", inc)
	}
	c.Auction.minIncrement = inc

	if c.Auction.LastMinuteThresholdSec == 0 {
		c.Auction.LastMinuteThresholdSec = 60
	}
	if c.Auction.ExtensionSec == 0 {
		c.Auction.ExtensionSec = 30
	}
	if c.Auction.SweepIntervalSec == 0 {
		c.Auction.SweepIntervalSec = 10
	}
	if c.Auction.TimeWarningIntervalSec == 0 {
		c.Auction.TimeWarningIntervalSec = 5
	}
	if c.Auction.LastMinuteThresholdSec < 0 || c.Auction.ExtensionSec < 0 ||
		c.Auction.SweepIntervalSec < 0 || c.Auction.TimeWarningIntervalSec < 0 {
		return fmt.Errorf("auction intervals must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// MinIncrement returns the parsed minimum bid increment.
func (c *Config) MinIncrement() decimal.Decimal {
	return c.Auction.minIncrement
}

// LastMinuteThreshold returns the anti-sniping window.
func (c *Config) LastMinuteThreshold() time.Duration {
	return time.Duration(c.Auction.LastMinuteThresholdSec) * time.Second
}

// Extension returns the anti-sniping extension length.
func (c *Config) Extension() time.Duration {
	return time.Duration(c.Auction.ExtensionSec) * time.Second
}

// SweepInterval returns the lifecycle sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Auction.SweepIntervalSec) * time.Second
}

// TimeWarningInterval returns the period of the last-minute warning broadcast.
func (c *Config) TimeWarningInterval() time.Duration {
	return time.Duration(c.Auction.TimeWarningIntervalSec) * time.Second
}

// overrideWithEnv applies environment variables over the file values.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("AUCTION_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if inc := os.Getenv("AUCTION_MIN_INCREMENT"); inc != "" {
		cfg.Auction.MinIncrement = inc
	}
	if v := os.Getenv("AUCTION_LAST_MINUTE_THRESHOLD"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.Auction.LastMinuteThresholdSec = sec
		}
	}
	if v := os.Getenv("AUCTION_EXTENSION_SECONDS"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.Auction.ExtensionSec = sec
		}
	}
	if v := os.Getenv("AUCTION_SWEEP_INTERVAL"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.Auction.SweepIntervalSec = sec
		}
	}
	if path := os.Getenv("AUCTION_ARCHIVE_PATH"); path != "" {
		cfg.Archive.Path = path
	}
}
