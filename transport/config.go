package transport

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// BreakerConfig controls the circuit breaker in front of the storefront API.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `mapstructure:"max_requests" validate:"min=1"`
	// Interval after which closed-state counts are cleared.
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`
	// Timeout the breaker stays open before probing again.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// FailureRatio of server failures that trips the breaker.
	FailureRatio float64 `mapstructure:"failure_ratio" validate:"gt=0,lte=1"`
	// MinRequests needed before the ratio is considered.
	MinRequests uint32 `mapstructure:"min_requests" validate:"min=1"`
}

// Config is the storefront API client configuration.
type Config struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// DefaultConfig returns defaults for a storefront served on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		Timeout: 10 * time.Second,
		Breaker: BreakerConfig{
			MaxRequests:  5,
			Interval:     30 * time.Second,
			Timeout:      60 * time.Second,
			FailureRatio: 0.8,
			MinRequests:  5,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("transport: invalid config: %w", err)
	}
	return nil
}
