package scheduler

import (
	"time"

	"github.com/smallbiznis/sparks/internal/config"
)

// Config controls the classifier loop. LockTTL must outlive JobTimeout so a
// slow pass is never overlapped by a second replica.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  4 * time.Minute,
		LockTTL:     5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Funnel.Interval,
		LockTTL:     cfg.Funnel.LockTTL,
		EnabledJobs: cfg.Funnel.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.JobTimeout >= c.LockTTL {
		c.JobTimeout = c.LockTTL - c.LockTTL/5
	}
	return c
}
