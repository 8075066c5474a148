// Package querycache tracks the lifecycle of every cached server read.
//
// Each key maps to one entry holding a status (fresh, stale, fetching, error),
// the generation of its last data and the set of live observers. Data lives in
// the shared cache table under a generation-suffixed storage key:
// invalidating an entry moves it to a new generation, so a read issued after
// the invalidation always starts a new fetch instead of joining one started
// before it, while the previous data stays visible until replaced.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
)

// EntryStatus is the lifecycle state of a cache entry.
type EntryStatus string

const (
	EntryFresh    EntryStatus = "fresh"
	EntryStale    EntryStatus = "stale"
	EntryFetching EntryStatus = "fetching"
	EntryError    EntryStatus = "error"
)

// ErrorEvent describes a failed read or mutation handed to the error hook.
type ErrorEvent struct {
	Key      keyspace.Key
	Mutation string
	Err      error
}

// ErrorHook receives every read and mutation failure.
type ErrorHook func(ctx context.Context, ev ErrorEvent)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// WithMetrics records cache activity on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithErrorHook adds a hook called on every read and mutation failure.
func WithErrorHook(h ErrorHook) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// WithRetryPolicy decides which read errors are worth another attempt.
func WithRetryPolicy(retryable func(error) bool) Option {
	return func(c *Client) {
		if retryable != nil {
			c.retryable = retryable
		}
	}
}

// WithNotFoundPolicy decides which read errors mean the record does not exist.
// Such reads end in a terminal state and are never retried.
func WithNotFoundPolicy(notFound func(error) bool) Option {
	return func(c *Client) {
		if notFound != nil {
			c.notFound = notFound
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client owns the entries of one cache table.
type Client struct {
	store   cache.CacheService
	cfg     Config
	entries *xsync.MapOf[string, *entry]

	gen    atomic.Uint64
	obsSeq atomic.Uint64

	log       logger.Logger
	metrics   *Metrics
	hooks     []ErrorHook
	retryable func(error) bool
	notFound  func(error) bool
	now       func() time.Time

	background sync.WaitGroup
}

// New builds a client over store.
func New(store cache.CacheService, cfg Config, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("querycache: nil cache service")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("querycache: invalid config: %w", err)
	}

	c := &Client{
		store:     store,
		cfg:       cfg,
		entries:   xsync.NewMapOf[string, *entry](),
		log:       logger.Nop(),
		retryable: defaultRetryable,
		notFound:  defaultNotFound,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.cfg }

// Wait blocks until every background refetch started so far has finished.
func (c *Client) Wait() { c.background.Wait() }

// Len returns the number of tracked entries.
func (c *Client) Len() int { return c.entries.Size() }

// Status returns the lifecycle state of key and whether it is tracked.
func (c *Client) Status(key keyspace.Key) (EntryStatus, bool) {
	e, ok := c.entries.Load(key.String())
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func defaultNotFound(err error) bool {
	return errors.Is(err, cache.ErrNotFound)
}

func (c *Client) nextGen() uint64 { return c.gen.Add(1) }

func (c *Client) entry(key keyspace.Key) *entry {
	e, _ := c.entries.LoadOrCompute(key.String(), func() *entry {
		return &entry{
			key:       key,
			gen:       c.nextGen(),
			status:    EntryStale,
			observers: make(map[uint64]*observer),
		}
	})
	return e
}

// matching returns the entries under any of prefixes. No prefix matches nothing.
func (c *Client) matching(prefixes []keyspace.Key) []*entry {
	var out []*entry
	c.entries.Range(func(_ string, e *entry) bool {
		for _, p := range prefixes {
			if e.key.HasPrefix(p) {
				out = append(out, e)
				break
			}
		}
		return true
	})
	return out
}

// forget drops e from the registry if it is still registered and unobserved.
func (c *Client) forget(e *entry) bool {
	removed := false
	c.entries.Compute(e.key.String(), func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return nil, true
		}
		if old != e || old.observed() {
			return old, false
		}
		removed = true
		return nil, true
	})
	return removed
}

func (c *Client) reportError(ctx context.Context, ev ErrorEvent) {
	for _, h := range c.hooks {
		h(ctx, ev)
	}
}

// goBackground runs fn detached from the caller, bounded by RefetchTimeout.
func (c *Client) goBackground(name string, key keyspace.Key, fn func(ctx context.Context)) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("background task panicked",
					zap.String("task", name),
					zap.String("key", key.String()),
					zap.Any("panic", r),
				)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RefetchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func storageKey(key keyspace.Key, gen uint64) string {
	return fmt.Sprintf("%s#%d", key.String(), gen)
}

// storagePrefix matches every generation stored for key.
func storagePrefix(key keyspace.Key) string {
	return key.String() + "#"
}
