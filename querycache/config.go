package querycache

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Infinite marks a query whose data never goes stale on its own. Only an
// invalidation or a reset replaces it.
const Infinite time.Duration = -1

// Config controls freshness, retention and retry of cached reads.
type Config struct {
	// StaleTime is how long fetched data is served without refetching when a
	// query does not set its own. Zero means data is stale right away.
	StaleTime time.Duration `mapstructure:"stale_time"`

	// GCTime is how long an entry nobody observes is kept before Sweep drops it.
	GCTime time.Duration `mapstructure:"gc_time"`

	// Retries is the number of extra attempts a failed read gets. Mutations
	// are never retried.
	Retries int `mapstructure:"retries"`

	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`

	// RefetchTimeout bounds background refetches of observed entries.
	RefetchTimeout time.Duration `mapstructure:"refetch_timeout"`

	// SweepSchedule is the cron spec the Janitor runs Sweep on.
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// DefaultConfig returns the settings used by the storefront container.
func DefaultConfig() Config {
	return Config{
		StaleTime:      30 * time.Second,
		GCTime:         5 * time.Minute,
		Retries:        3,
		RetryBaseDelay: 200 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
		RefetchTimeout: 30 * time.Second,
		SweepSchedule:  "@every 1m",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.StaleTime, validation.By(staleTimeRule)),
		validation.Field(&c.GCTime, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.RetryBaseDelay, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryMaxDelay, validation.Required, validation.Min(c.RetryBaseDelay)),
		validation.Field(&c.RefetchTimeout, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&c.SweepSchedule, validation.Required),
	)
}

func staleTimeRule(value any) error {
	d, _ := value.(time.Duration)
	if d < 0 && d != Infinite {
		return errors.New("must be zero, positive or Infinite")
	}
	return nil
}
