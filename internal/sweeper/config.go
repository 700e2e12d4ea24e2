package sweeper

import (
	"fmt"
	"time"

	"github.com/nextbestmove/nbm/internal/store"
)

// Config defines the sweeper configuration.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Workers is the maximum number of users swept concurrently.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// DoneArchiveDays archives DONE actions completed longer ago than this.
	DoneArchiveDays int `yaml:"done_archive_days" mapstructure:"done_archive_days"`
	// StaleAutoArchiveDays archives auto-created overdue actions untouched this long.
	StaleAutoArchiveDays int `yaml:"stale_auto_archive_days" mapstructure:"stale_auto_archive_days"`
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:             15 * time.Minute,
		Workers:              4,
		DoneArchiveDays:      90,
		StaleAutoArchiveDays: 7,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.DoneArchiveDays < 1 || c.StaleAutoArchiveDays < 1 {
		return fmt.Errorf("archive windows must be at least one day")
	}
	return nil
}

// ArchivePolicy converts the configured windows to a store policy.
func (c *Config) ArchivePolicy() store.ArchivePolicy {
	return store.ArchivePolicy{
		DoneAfter:      time.Duration(c.DoneArchiveDays) * 24 * time.Hour,
		StaleAutoAfter: time.Duration(c.StaleAutoArchiveDays) * 24 * time.Hour,
	}
}
