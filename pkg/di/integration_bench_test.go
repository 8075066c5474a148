package di

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/testsupport"
	"github.com/goliatone/go-storefront-cache/productset"
	"github.com/goliatone/go-storefront-cache/querycache"
)

// TestConcurrentReadsShareFetch checks that readers of one key never reach
// the backend more than once while the data is fresh.
func TestConcurrentReadsShareFetch(t *testing.T) {
	sf := testsupport.NewStorefront()
	sf.Delay(testsupport.OpProductSet, 20*time.Millisecond)
	c := newTestContainer(t, sf)
	ctx := context.Background()

	const numGoroutines = 50
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Favorites().Snapshot(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent Snapshot() failed: %v", err)
	}
	if got := sf.Calls(testsupport.OpProductSet); got != 1 {
		t.Errorf("Expected a single backend read, got %d", got)
	}
}

// TestConcurrentMutations runs mutations in parallel and checks the final read
// reflects all of them.
func TestConcurrentMutations(t *testing.T) {
	sf := testsupport.NewStorefront()
	c := newTestContainer(t, sf)
	ctx := context.Background()

	if _, err := c.Basket().Create(ctx); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	const numGoroutines = 20
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*2)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := c.Basket().AddItem(ctx, 101, 1); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := c.Basket().Snapshot(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	snap, err := c.Basket().Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if got := snap.Data.Quantity(); got != numGoroutines {
		t.Errorf("Expected quantity %d, got %d", numGoroutines, got)
	}
	if got := sf.Calls(testsupport.OpCreateBasket); got != 1 {
		t.Errorf("Expected one basket, created %d", got)
	}
}

// TestSweepDropsIdleEntries checks that unobserved entries are dropped
// after GCTime while observed ones stay.
func TestSweepDropsIdleEntries(t *testing.T) {
	c := newTestContainer(t, testsupport.NewStorefront())
	ctx := context.Background()

	if _, err := c.Favorites().Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	stop, err := c.Comparison().Observe(ctx, func(querycache.Result[productset.Set]) {})
	if err != nil {
		t.Fatalf("Observe() failed: %v", err)
	}
	defer stop()
	c.Queries().Wait()

	before := c.Queries().Len()
	dropped := c.Queries().Sweep(ctx, time.Now().Add(c.Config().Queries.GCTime+time.Second))
	if dropped == 0 {
		t.Fatal("Expected idle entries to be swept")
	}
	if got := c.Queries().Len(); got != before-dropped {
		t.Errorf("Expected %d entries after sweep, got %d", before-dropped, got)
	}
}

func BenchmarkCachedSnapshot(b *testing.B) {
	c := newTestContainer(b, testsupport.NewStorefront())
	ctx := context.Background()
	if _, err := c.Basket().Snapshot(ctx); err != nil {
		b.Fatalf("Snapshot() failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Basket().Snapshot(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConcurrentSnapshot(b *testing.B) {
	c := newTestContainer(b, testsupport.NewStorefront())
	ctx := context.Background()
	if _, err := c.Favorites().Snapshot(ctx); err != nil {
		b.Fatalf("Snapshot() failed: %v", err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.Favorites().Snapshot(ctx); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkProductListKey(b *testing.B) {
	params := catalog.ListParams{
		Filters: catalog.NewFilterSet(map[string][]string{
			"category":     {"phones"},
			"manufacturer": {"7", "3", "9"},
			"price_min":    {"100"},
			"price_max":    {"900"},
		}),
		Order:    "-price",
		Page:     3,
		PageSize: 24,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = keyspace.ProductList(params).String()
	}
}

func BenchmarkListingPages(b *testing.B) {
	c := newTestContainer(b, testsupport.NewStorefront())
	ctx := context.Background()
	if _, err := c.Listing().Mount(ctx, catalog.FilterSet{}); err != nil {
		b.Fatalf("Mount() failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Listing().Dispatch(ctx, catalog.SetPage{Page: i%2 + 1}); err != nil {
			b.Fatal(err)
		}
		if _, err := c.Listing().Load(ctx); err != nil {
			b.Fatal(fmt.Errorf("page %d: %w", i%2+1, err))
		}
	}
}
