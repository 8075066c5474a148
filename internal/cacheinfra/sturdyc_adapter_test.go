package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Capacity:             100,
		NumShards:            2,
		TTL:                  time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 2048 {
		t.Errorf("expected Capacity to be 2048, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 16 {
		t.Errorf("expected NumShards to be 16, got %d", cfg.NumShards)
	}

	if cfg.TTL != 5*time.Minute {
		t.Errorf("expected TTL to be 5 minutes, got %v", cfg.TTL)
	}

	if !cfg.MissingRecordStorage {
		t.Error("expected MissingRecordStorage to be true")
	}

	if cfg.EarlyRefresh != nil {
		t.Error("expected EarlyRefresh to be disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:     "zero capacity",
			mutate:   func(c *Config) { c.Capacity = 0 },
			errorMsg: "config error in field Capacity: must be greater than 0",
		},
		{
			name:     "zero shards",
			mutate:   func(c *Config) { c.NumShards = 0 },
			errorMsg: "config error in field NumShards: must be greater than 0",
		},
		{
			name:     "zero TTL",
			mutate:   func(c *Config) { c.TTL = 0 },
			errorMsg: "config error in field TTL: must be greater than 0",
		},
		{
			name:     "eviction percentage too high",
			mutate:   func(c *Config) { c.EvictionPercentage = 101 },
			errorMsg: "config error in field EvictionPercentage: must be between 1 and 100",
		},
		{
			name: "early refresh window inverted",
			mutate: func(c *Config) {
				c.EarlyRefresh = &EarlyRefreshConfig{
					MinAsyncRefreshTime: 20 * time.Second,
					MaxAsyncRefreshTime: 10 * time.Second,
				}
			},
			errorMsg: "config error in field EarlyRefresh.MaxAsyncRefreshTime: must not be lower than MinAsyncRefreshTime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("expected no validation error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error but got none")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("expected error message %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := testConfig()
	if got := len(cfg.ToSturdycOptions()); got != 1 {
		t.Errorf("expected 1 option for missing record storage, got %d", got)
	}

	cfg.MissingRecordStorage = false
	if got := len(cfg.ToSturdycOptions()); got != 0 {
		t.Errorf("expected no options for minimal config, got %d", got)
	}

	cfg.EvictionInterval = time.Second
	cfg.EarlyRefresh = &EarlyRefreshConfig{
		MinAsyncRefreshTime: time.Second,
		MaxAsyncRefreshTime: 2 * time.Second,
		SyncRefreshTime:     3 * time.Second,
		RetryBaseDelay:      10 * time.Millisecond,
	}
	if got := len(cfg.ToSturdycOptions()); got != 2 {
		t.Errorf("expected 2 options, got %d", got)
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 0

	service, err := NewSturdycService(cfg)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if service != nil {
		t.Error("expected service to be nil when error occurs")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "Capacity" {
		t.Errorf("expected ConfigError for Capacity, got %v", err)
	}
}

func TestSturdycService_GetOrFetch(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		calls := 0
		fetchFn := func(ctx context.Context) (string, error) {
			calls++
			return "basket", nil
		}

		for i := 0; i < 3; i++ {
			result, err := service.GetOrFetch(ctx, "basket::7", fetchFn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != "basket" {
				t.Errorf("expected basket, got %v", result)
			}
		}

		if calls != 1 {
			t.Errorf("expected a single fetch, got %d", calls)
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		calls := 0
		fetchFn := func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("bad gateway")
		}

		for i := 0; i < 2; i++ {
			if _, err := service.GetOrFetch(ctx, "orders::list", fetchFn); err == nil {
				t.Fatal("expected error")
			}
		}

		if calls != 2 {
			t.Errorf("expected every read to retry the fetch, got %d calls", calls)
		}
	})

	t.Run("not found is remembered", func(t *testing.T) {
		calls := 0
		fetchFn := func(ctx context.Context) (string, error) {
			calls++
			return "", fmt.Errorf("product 404: %w", ErrNotFound)
		}

		for i := 0; i < 2; i++ {
			_, err := service.GetOrFetch(ctx, "products::detail::x1", fetchFn)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		}

		if calls != 1 {
			t.Errorf("expected missing record to short-circuit, got %d calls", calls)
		}
	})

	t.Run("invalid fetch function", func(t *testing.T) {
		_, err := service.GetOrFetch(ctx, "k", func() (string, error) { return "", nil })
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("expected ConfigError, got %v", err)
		}

		_, err = service.GetOrFetch(ctx, "k", nil)
		if !errors.As(err, &cfgErr) {
			t.Errorf("expected ConfigError for nil fetchFn, got %v", err)
		}
	})
}

func TestSturdycService_ConcurrentReadsShareFetch(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	var calls atomic.Int32
	fetchFn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := service.GetOrFetch(context.Background(), "session", fetchFn)
			if err != nil || v != 42 {
				t.Errorf("unexpected result %v, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected one shared fetch, got %d", got)
	}
}

func TestSturdycService_Delete(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	keys := []string{"basket::1", "basket::2", "favorites::1"}
	for _, key := range keys {
		value := key
		if _, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (string, error) {
			return value, nil
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := service.DeleteByPrefix(ctx, "basket::"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}

	for _, key := range keys[:2] {
		if _, ok := service.Get(ctx, key); ok {
			t.Errorf("expected %s to be deleted", key)
		}
	}
	if v, ok := service.Get(ctx, "favorites::1"); !ok || v != "favorites::1" {
		t.Error("expected favorites::1 to survive prefix delete")
	}

	if err := service.InvalidateKeys(ctx, []string{"favorites::1"}); err != nil {
		t.Fatalf("InvalidateKeys failed: %v", err)
	}
	if _, ok := service.Get(ctx, "favorites::1"); ok {
		t.Error("expected favorites::1 to be deleted")
	}
}
