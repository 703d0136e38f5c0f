package scheduler

import (
	"time"

	"github.com/smallbiznis/clearline/internal/config"
)

// Config controls the rematch sweep schedule and batch sizes.
type Config struct {
	Spec       string
	BatchSize  int
	MaxAge     time.Duration
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Spec:       "*/15 * * * *",
		BatchSize:  50,
		MaxAge:     30 * 24 * time.Hour,
		JobTimeout: 5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Spec:      cfg.Scheduler.RematchSpec,
		BatchSize: cfg.Scheduler.RematchBatch,
		MaxAge:    cfg.Scheduler.RematchMaxAge,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Spec == "" {
		c.Spec = defaults.Spec
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
