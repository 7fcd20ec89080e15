package scheduler

import (
	"time"

	"github.com/smallbiznis/boostd/internal/config"
)

// Config controls sweep intervals, windows and batch sizes.
type Config struct {
	RunInterval   time.Duration
	BatchSize     int
	JobTimeout    time.Duration
	WarningWindow time.Duration
	RenewalWindow time.Duration
	// PendingTTL of zero disables the stale pending sweep.
	PendingTTL                 time.Duration
	PerformanceRefreshInterval time.Duration
	ReconcileGrace             time.Duration
	LockTTL                    time.Duration
	EnabledJobs                []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:                time.Minute,
		BatchSize:                  100,
		JobTimeout:                 30 * time.Second,
		WarningWindow:              24 * time.Hour,
		RenewalWindow:              24 * time.Hour,
		PerformanceRefreshInterval: time.Hour,
		ReconcileGrace:             15 * time.Minute,
		LockTTL:                    5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	return Config{
		RunInterval:                sc.RunInterval,
		BatchSize:                  sc.BatchSize,
		JobTimeout:                 sc.JobTimeout,
		WarningWindow:              sc.WarningWindow,
		RenewalWindow:              sc.RenewalWindow,
		PendingTTL:                 sc.PendingTTL,
		PerformanceRefreshInterval: sc.PerformanceRefreshInterval,
		ReconcileGrace:             sc.ReconcileGrace,
		LockTTL:                    sc.LockTTL,
		EnabledJobs:                sc.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.WarningWindow <= 0 {
		c.WarningWindow = defaults.WarningWindow
	}
	if c.RenewalWindow <= 0 {
		c.RenewalWindow = defaults.RenewalWindow
	}
	if c.PendingTTL < 0 {
		c.PendingTTL = 0
	}
	if c.PerformanceRefreshInterval <= 0 {
		c.PerformanceRefreshInterval = defaults.PerformanceRefreshInterval
	}
	if c.ReconcileGrace <= 0 {
		c.ReconcileGrace = defaults.ReconcileGrace
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
