package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/keyspace"
)

var (
	ErrZeroKey  = errors.New("querycache: query without key")
	ErrNilFetch = errors.New("querycache: query without fetch function")
)

// Status is what a consumer renders.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusSuccess Status = "success"
)

// Query describes one cached read.
type Query[T any] struct {
	Key   keyspace.Key
	Fetch cache.FetchFn[T]

	// StaleTime overrides Config.StaleTime when non-zero. Use Infinite for
	// data only an invalidation may replace.
	StaleTime time.Duration

	// Expiry optionally derives a deadline from the data itself, such as the
	// expiry of an access token. The earlier of both deadlines wins.
	Expiry func(T) time.Time
}

// Result is a snapshot of one entry.
type Result[T any] struct {
	Key     keyspace.Key
	Data    T
	HasData bool
	Status  Status
	Entry   EntryStatus
	Err     error

	// NotFound reports a terminal 404; the key is not fetched again until it
	// is invalidated.
	NotFound bool

	// IsPlaceholder is set by callers showing retained data of another key
	// while this one loads.
	IsPlaceholder bool

	// Changed is false when the last fetch returned data identical to what
	// was already cached.
	Changed bool

	UpdatedAt time.Time
}

// Loading reports whether nothing can be rendered yet.
func (r Result[T]) Loading() bool { return r.Status == StatusLoading }

func renderStatus(entry EntryStatus, hasData bool) Status {
	switch {
	case entry == EntryError:
		return StatusError
	case hasData:
		return StatusSuccess
	default:
		return StatusLoading
	}
}

// Fetch returns the cached data of q.Key when fresh and fetches it otherwise.
// Concurrent calls for one key share a single fetch. The returned error is the
// read failure, also recorded on the entry.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) (Result[T], error) {
	if q.Key.IsZero() {
		return Result[T]{}, ErrZeroKey
	}
	if q.Fetch == nil {
		return Result[T]{Key: q.Key}, ErrNilFetch
	}

	e := c.entry(q.Key)
	now := c.now()

	e.mu.Lock()
	e.lastAccess = now
	if e.freshLocked(now) {
		gen := e.dataGen
		e.mu.Unlock()
		if _, ok := cache.Get[T](ctx, c.store, storageKey(q.Key, gen)); ok {
			c.metrics.hit(q.Key.Domain())
			return snapshot[T](ctx, c, e), nil
		}
		e.mu.Lock()
	}
	if e.notFound {
		e.mu.Unlock()
		res := snapshot[T](ctx, c, e)
		return res, res.Err
	}
	if e.hasData && e.dataGen == e.gen {
		e.gen = c.nextGen()
	}
	gen := e.gen
	e.status = EntryFetching
	e.mu.Unlock()

	v, err := cache.GetOrFetch(ctx, c.store, storageKey(q.Key, gen), retrying(c, q))
	return complete(ctx, c, e, q, gen, v, err)
}

// complete records the outcome of a fetch issued under gen. Outcomes of fetches
// superseded by an invalidation are returned to their caller but never stored.
func complete[T any](ctx context.Context, c *Client, e *entry, q Query[T], gen uint64, v T, err error) (Result[T], error) {
	now := c.now()
	domain := q.Key.Domain()

	e.mu.Lock()
	current := e.gen == gen && e.status == EntryFetching
	var staleGen uint64
	if current {
		if err != nil {
			e.status = EntryError
			e.err = err
			e.notFound = errors.Is(err, cache.ErrNotFound)
		} else {
			fp, fpOK := cache.Fingerprint(v)
			e.changed = !(e.hasData && fpOK && e.hasFingerprint && fp == e.fingerprint)
			if e.hasData && e.dataGen != gen {
				staleGen = e.dataGen
			}
			e.dataGen = gen
			e.hasData = true
			e.status = EntryFresh
			e.err = nil
			e.notFound = false
			e.updatedAt = now
			e.staleAt = staleDeadline(c, q, v, now)
			e.fingerprint, e.hasFingerprint = fp, fpOK
		}
	}
	// another caller sharing this fetch already recorded it
	joined := !current && e.gen == gen &&
		((err == nil && e.hasData && e.dataGen == gen) || (err != nil && e.status == EntryError))
	e.mu.Unlock()

	if joined {
		res := snapshot[T](ctx, c, e)
		if err == nil {
			res.Data, res.HasData = v, true
			res.Status = renderStatus(res.Entry, true)
		}
		return res, err
	}
	if !current {
		c.log.Debug("discarding superseded read", zap.String("key", q.Key.String()), zap.Uint64("gen", gen))
		res := Result[T]{Key: q.Key, Entry: EntryStale, UpdatedAt: now}
		if err != nil {
			res.Entry, res.Status, res.Err = EntryError, StatusError, err
			res.NotFound = errors.Is(err, cache.ErrNotFound)
			return res, err
		}
		res.Data, res.HasData, res.Status, res.Changed = v, true, StatusSuccess, true
		return res, nil
	}

	if err != nil {
		c.metrics.fetched(domain, outcome(err))
		c.log.Warn("cache read failed", zap.String("key", q.Key.String()), zap.Error(err))
		c.reportError(ctx, ErrorEvent{Key: q.Key, Err: err})
	} else {
		c.metrics.fetched(domain, "ok")
	}
	if staleGen != 0 {
		_ = c.store.Delete(ctx, storageKey(q.Key, staleGen))
	}

	e.notify()

	res := snapshot[T](ctx, c, e)
	if err == nil {
		res.Data, res.HasData = v, true
		res.Status = renderStatus(res.Entry, true)
	}
	return res, err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func staleDeadline[T any](c *Client, q Query[T], v T, now time.Time) time.Time {
	d := q.StaleTime
	if d == 0 {
		d = c.cfg.StaleTime
	}
	var at time.Time
	if d != Infinite {
		at = now.Add(d)
	}
	if q.Expiry != nil {
		if exp := q.Expiry(v); !exp.IsZero() && (at.IsZero() || exp.Before(at)) {
			at = exp
		}
	}
	return at
}

// snapshot reads the entry and, when it has data, the value behind it.
func snapshot[T any](ctx context.Context, c *Client, e *entry) Result[T] {
	e.mu.Lock()
	res := Result[T]{
		Key:       e.key,
		Entry:     e.status,
		Err:       e.err,
		NotFound:  e.notFound,
		Changed:   e.changed,
		UpdatedAt: e.updatedAt,
	}
	hasData, dataGen := e.hasData, e.dataGen
	e.mu.Unlock()

	if hasData {
		if v, ok := cache.Get[T](ctx, c.store, storageKey(e.key, dataGen)); ok {
			res.Data, res.HasData = v, true
		}
	}
	res.Status = renderStatus(res.Entry, res.HasData)
	return res
}

// Peek returns what is cached under key without fetching. Untracked keys
// report StatusLoading.
func Peek[T any](c *Client, key keyspace.Key) Result[T] {
	e, ok := c.entries.Load(key.String())
	if !ok {
		return Result[T]{Key: key, Status: StatusLoading}
	}
	return snapshot[T](context.Background(), c, e)
}

// Observe registers fn to receive a snapshot of q.Key now and after every
// change. Missing or stale data is fetched in the background. The returned
// function unregisters fn; once an entry has no observers it becomes eligible
// for Sweep.
func Observe[T any](c *Client, q Query[T], fn func(Result[T])) func() {
	id := c.obsSeq.Add(1)
	var e *entry
	var obs *observer

	for {
		e = c.entry(q.Key)
		target := e
		obs = &observer{
			notify:  func() { fn(snapshot[T](context.Background(), c, target)) },
			refetch: func(ctx context.Context) { _, _ = Fetch(ctx, c, q) },
		}
		e.mu.Lock()
		e.observers[id] = obs
		e.lastAccess = c.now()
		e.mu.Unlock()

		// a concurrent Reset or Sweep may have dropped the entry before it
		// was observed
		if cur, ok := c.entries.Load(q.Key.String()); ok && cur == e {
			break
		}
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}

	fn(snapshot[T](context.Background(), c, e))

	e.mu.Lock()
	needsFetch := !e.freshLocked(c.now()) && !e.notFound && e.status != EntryFetching
	e.mu.Unlock()
	if needsFetch && q.Fetch != nil {
		c.goBackground("observe", q.Key, obs.refetch)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.observers, id)
			e.lastAccess = c.now()
			e.mu.Unlock()
		})
	}
}

// retrying wraps q.Fetch with bounded exponential backoff. Not-found and
// non-retryable errors end the loop at once.
func retrying[T any](c *Client, q Query[T]) cache.FetchFn[T] {
	return func(ctx context.Context) (T, error) {
		attempt := 0
		op := func() (T, error) {
			attempt++
			v, err := q.Fetch(ctx)
			switch {
			case err == nil:
				return v, nil
			case c.notFound(err):
				if !errors.Is(err, cache.ErrNotFound) {
					err = fmt.Errorf("%w: %w", cache.ErrNotFound, err)
				}
				return v, backoff.Permanent(err)
			case !c.retryable(err):
				return v, backoff.Permanent(err)
			}
			c.log.Debug("cache read attempt failed",
				zap.String("key", q.Key.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return v, err
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.cfg.RetryBaseDelay
		b.MaxInterval = c.cfg.RetryMaxDelay

		return backoff.Retry(ctx, op,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(uint(c.cfg.Retries)+1),
		)
	}
}
