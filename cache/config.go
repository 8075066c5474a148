package cache

import "github.com/goliatone/go-storefront-cache/internal/cacheinfra"

// Config sizes the process-wide cache table. It is loaded from the "cache"
// section of the storefront configuration.
type Config = cacheinfra.Config

// EarlyRefreshConfig enables sturdyc early refreshes when set on Config.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// DefaultConfig returns a table sized for one browser session.
func DefaultConfig() Config {
	return cacheinfra.DefaultConfig()
}

// NewCacheService builds the sturdyc backed table from cfg.
func NewCacheService(cfg Config) (CacheService, error) {
	service, err := cacheinfra.NewSturdycService(cfg)
	if err != nil {
		return nil, err
	}
	return service, nil
}
