package di

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/navigation"
	"github.com/goliatone/go-storefront-cache/pkg/config"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/pkg/testsupport"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Queries.RetryBaseDelay = time.Millisecond
	cfg.Queries.RetryMaxDelay = 2 * time.Millisecond
	return cfg
}

func newTestContainer(t testing.TB, sf *testsupport.Storefront, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{
		WithBackend(sf),
		WithLogger(logger.Nop()),
		WithRegisterer(prometheus.NewRegistry()),
	}, opts...)
	c, err := NewContainer(testConfig(), opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewContainer(t *testing.T) {
	c := newTestContainer(t, testsupport.NewStorefront())

	if c.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if c.Queries() == nil || c.Identity() == nil || c.Basket() == nil || c.Orders() == nil {
		t.Error("Container should wire every entity cache")
	}
	if c.Favorites().Kind() == c.Comparison().Kind() {
		t.Error("Favorites and comparison should be distinct lists")
	}
	if c.Listing() == nil || c.Cascade() == nil || c.Router() == nil || c.Hints() == nil {
		t.Error("Container should wire listing, cascade, router and hints")
	}
	if c.Client() != nil {
		t.Error("Container should not build an HTTP client when a backend is injected")
	}
	if c.Metrics() == nil {
		t.Error("Container should build metrics when enabled")
	}
	if got := c.Config().Catalog.PageSize; got != config.Default().Catalog.PageSize {
		t.Errorf("Expected page size %d, got %d", config.Default().Catalog.PageSize, got)
	}
}

func TestNewContainer_HTTPClient(t *testing.T) {
	c, err := NewContainer(testConfig(), WithLogger(logger.Nop()), WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer c.Close()

	if c.Client() == nil {
		t.Fatal("Container should build an HTTP client by default")
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"cache capacity", func(c *config.Config) { c.Cache.Capacity = 0 }},
		{"sweep schedule", func(c *config.Config) { c.Queries.SweepSchedule = "every now and then" }},
		{"base url", func(c *config.Config) { c.Transport.BaseURL = "" }},
		{"page size", func(c *config.Config) { c.Catalog.PageSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewContainer(cfg, WithLogger(logger.Nop()), WithRegisterer(prometheus.NewRegistry()))
			if err == nil {
				t.Error("Expected error for invalid config, got nil")
			}
		})
	}
}

func TestNewContainer_DuplicateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sf := testsupport.NewStorefront()
	newTestContainer(t, sf, WithRegisterer(reg))

	_, err := NewContainer(testConfig(), WithBackend(sf), WithLogger(logger.Nop()), WithRegisterer(reg))
	if err == nil {
		t.Fatal("Expected registering the same collectors twice to fail")
	}
}

func TestNewContainer_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	c, err := NewContainer(cfg, WithBackend(testsupport.NewStorefront()), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer c.Close()

	if c.Metrics() != nil {
		t.Error("Expected no metrics when disabled")
	}
}

func TestContainer_MetricsCountReads(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestContainer(t, testsupport.NewStorefront(), WithRegisterer(reg))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Basket().Snapshot(ctx); err != nil {
			t.Fatalf("Snapshot() failed: %v", err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"storefront_querycache_fetches_total", "storefront_querycache_hits_total"} {
		if !found[name] {
			t.Errorf("Expected metric %s, got %v", name, keysOf(found))
		}
	}
}

func keysOf(m map[string]bool) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return strings.Join(names, ",")
}

func TestContainer_GuardsWaitForNavigation(t *testing.T) {
	sf := testsupport.NewStorefront()
	c := newTestContainer(t, sf)
	ctx := context.Background()

	if err := c.Identity().SignIn(ctx, identity.Credentials{Email: "ada@example.com", Password: "analytical"}); err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}

	fired := 0
	guard := c.Identity().RequireAuth(func() { fired++ })
	defer guard.Cancel()

	firedDuring := -1
	unsubscribe := c.Router().Subscribe(func(ev navigation.Event, loc navigation.Location) {
		if ev != navigation.Started || loc.Path != "/account/logout" {
			return
		}
		if err := c.Identity().SignOut(ctx); err != nil {
			t.Errorf("SignOut() failed: %v", err)
		}
		firedDuring = fired
	})
	defer unsubscribe()

	if err := c.Router().Push(ctx, navigation.Location{Path: "/account/logout"}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	if firedDuring != 0 {
		t.Errorf("Guard fired during navigation: %d", firedDuring)
	}
	if fired != 1 {
		t.Errorf("Expected guard to fire once navigation completed, fired %d", fired)
	}
}

func TestContainer_CloseIsIdempotent(t *testing.T) {
	c := newTestContainer(t, testsupport.NewStorefront())
	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}
