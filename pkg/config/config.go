// Package config loads the storefront configuration from the environment.
//
// Values come from STOREFRONT_ prefixed variables, optionally seeded from a
// .env file, over the defaults of every component. Nested keys use an
// underscore, so transport.base_url is read from STOREFRONT_TRANSPORT_BASE_URL.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/querycache"
	"github.com/goliatone/go-storefront-cache/transport"
)

// EnvPrefix prefixes every variable Load reads.
const EnvPrefix = "STOREFRONT"

// MetricsConfig controls the Prometheus collectors of the query cache.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
}

// Config is the configuration of the whole storefront container.
type Config struct {
	Transport transport.Config  `mapstructure:"transport"`
	Logger    logger.Config     `mapstructure:"logger"`
	Cache     cache.Config      `mapstructure:"cache"`
	Queries   querycache.Config `mapstructure:"queries"`
	Catalog   catalog.Config    `mapstructure:"catalog"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// Default returns the defaults of every component.
func Default() Config {
	return Config{
		Transport: transport.DefaultConfig(),
		Logger:    logger.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Queries:   querycache.DefaultConfig(),
		Catalog:   catalog.DefaultConfig(),
		Metrics:   MetricsConfig{Enabled: true, Namespace: "storefront"},
	}
}

// keys lists every setting that may be overridden from the environment.
var keys = []string{
	"transport.base_url",
	"transport.timeout",
	"transport.breaker.max_requests",
	"transport.breaker.interval",
	"transport.breaker.timeout",
	"transport.breaker.failure_ratio",
	"transport.breaker.min_requests",

	"logger.level",
	"logger.encoding",
	"logger.output_paths",

	"cache.capacity",
	"cache.num_shards",
	"cache.ttl",
	"cache.eviction_percentage",
	"cache.missing_record_storage",
	"cache.eviction_interval",

	"queries.stale_time",
	"queries.gc_time",
	"queries.retries",
	"queries.retry_base_delay",
	"queries.retry_max_delay",
	"queries.refetch_timeout",
	"queries.sweep_schedule",

	"catalog.page_size",
	"catalog.context_fields",
	"catalog.stale_time",

	"metrics.enabled",
	"metrics.namespace",
}

// Load reads envFile when it exists, then the environment, over Default.
// An empty envFile means ".env". Variables already set in the environment
// win over the file.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and reports all failures together.
func (c Config) Validate() error {
	var errs []error
	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if err := c.Logger.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: cache: %w", err))
	}
	if err := c.Queries.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: queries: %w", err))
	}
	if err := c.Catalog.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: catalog: %w", err))
	}
	return errors.Join(errs...)
}
