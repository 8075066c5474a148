package testsupport

import (
	"testing"
	"time"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/querycache"
)

// NewQueryClient returns a query cache with millisecond retry delays. It
// waits for background refetches when the test ends.
func NewQueryClient(t testing.TB, opts ...querycache.Option) *querycache.Client {
	t.Helper()

	store, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create cache store: %v", err)
	}
	cfg := querycache.DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond

	c, err := querycache.New(store, cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create query client: %v", err)
	}
	t.Cleanup(c.Wait)
	return c
}

// Harness is a storefront with the query and identity caches in front of it.
type Harness struct {
	Storefront *Storefront
	Queries    *querycache.Client
	Identity   *identity.Cache
}

// NewHarness builds a Harness over the in-process storefront session.
func NewHarness(t testing.TB, opts ...Option) *Harness {
	t.Helper()

	sf := NewStorefront(opts...)
	queries := NewQueryClient(t)
	return &Harness{
		Storefront: sf,
		Queries:    queries,
		Identity:   identity.New(sf, queries),
	}
}
