package scheduler

import (
	"time"

	"github.com/lugondev/solana-guardian/internal/config"
	"github.com/lugondev/solana-guardian/internal/diff"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
)

// Defaults for the monitoring loop.
const (
	DefaultInterval       = 300 * time.Second
	DefaultWorkers        = 4
	DefaultFetchTimeout   = 20 * time.Second
	DefaultGracePeriod    = 10 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

// DefaultMetricsFlushInterval is how often Run flushes metrics.
const DefaultMetricsFlushInterval = 30 * time.Second

// Config holds the scheduler settings. It is passed explicitly to New.
type Config struct {
	// Interval is the time between tick starts.
	Interval time.Duration

	// Workers bounds the number of programs checked concurrently.
	Workers int

	// FetchTimeout bounds a single fetch attempt.
	FetchTimeout time.Duration

	// GracePeriod is how long in-flight checks may run after a stop request.
	GracePeriod time.Duration

	// MaxAttempts is the number of fetch attempts for retryable errors.
	MaxAttempts int

	// RetryBaseDelay and RetryMaxDelay shape the exponential backoff.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Diff holds the default diff options; programs may override them.
	Diff diff.Options

	// BaselineNotice logs a line the first time a program is observed.
	BaselineNotice bool

	// MetricsFlushInterval is how often Run flushes metrics.
	MetricsFlushInterval time.Duration
}

// DefaultConfig returns the free tier settings.
func DefaultConfig() Config {
	return Config{
		Interval:             DefaultInterval,
		Workers:              DefaultWorkers,
		FetchTimeout:         DefaultFetchTimeout,
		GracePeriod:          DefaultGracePeriod,
		MaxAttempts:          DefaultMaxAttempts,
		RetryBaseDelay:       DefaultRetryBaseDelay,
		RetryMaxDelay:        DefaultRetryMaxDelay,
		Diff:                 diff.DefaultOptions(),
		MetricsFlushInterval: DefaultMetricsFlushInterval,
	}
}

// ConfigFrom maps the guardian configuration section.
func ConfigFrom(cfg config.GuardianConfig, m config.MetricsConfig) Config {
	c := Config{
		Interval:             cfg.Interval,
		Workers:              cfg.Workers,
		FetchTimeout:         cfg.FetchTimeout,
		GracePeriod:          cfg.GracePeriod,
		MaxAttempts:          cfg.MaxAttempts,
		RetryBaseDelay:       cfg.RetryBaseDelay,
		RetryMaxDelay:        cfg.RetryMaxDelay,
		Diff:                 diff.Options{BalanceShiftThreshold: cfg.BalanceShiftThreshold},
		BaselineNotice:       cfg.BaselineNotice,
		MetricsFlushInterval: m.FlushInterval,
	}
	if c.MetricsFlushInterval <= 0 {
		c.MetricsFlushInterval = DefaultMetricsFlushInterval
	}
	return c
}

// Validate checks the settings. Errors are fatal configuration errors.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return gerrors.ConfigInvalid("scheduler interval must be positive, got %s", c.Interval)
	case c.Workers < 1:
		return gerrors.ConfigInvalid("scheduler workers must be at least 1, got %d", c.Workers)
	case c.FetchTimeout <= 0:
		return gerrors.ConfigInvalid("fetch timeout must be positive, got %s", c.FetchTimeout)
	case c.GracePeriod < 0:
		return gerrors.ConfigInvalid("grace period must not be negative, got %s", c.GracePeriod)
	case c.MaxAttempts < 1:
		return gerrors.ConfigInvalid("max attempts must be at least 1, got %d", c.MaxAttempts)
	case c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0:
		return gerrors.ConfigInvalid("retry delays must not be negative")
	case c.RetryMaxDelay < c.RetryBaseDelay:
		return gerrors.ConfigInvalid("retry max delay %s is below base delay %s", c.RetryMaxDelay, c.RetryBaseDelay)
	case c.Diff.BalanceShiftThreshold < 0:
		return gerrors.ConfigInvalid("balance shift threshold must not be negative, got %v", c.Diff.BalanceShiftThreshold)
	}
	return nil
}
