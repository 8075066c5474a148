package querycache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/keyspace"
)

// Invalidate marks every entry under prefixes stale. Their last data stays
// visible; observed entries are refetched in the background and any later
// Fetch starts a new read. It returns the number of entries touched.
func (c *Client) Invalidate(ctx context.Context, prefixes ...keyspace.Key) int {
	touched := c.matching(prefixes)
	for _, e := range touched {
		e.mu.Lock()
		e.gen = c.nextGen()
		e.status = EntryStale
		e.err = nil
		e.notFound = false
		e.mu.Unlock()

		c.metrics.invalidated(e.key.Domain())
		e.notify()

		if refetch := e.anyRefetch(); refetch != nil {
			c.goBackground("invalidate", e.key, refetch)
		}
	}

	if len(touched) > 0 {
		c.log.Debug("invalidated cache entries",
			zap.Strings("prefixes", renderKeys(prefixes)),
			zap.Int("entries", len(touched)),
		)
	}
	return len(touched)
}

// Reset drops the data of every entry under prefixes. Observers are told the
// entry is loading again and refetch it; unobserved entries are forgotten.
// Only identity changes call it.
func (c *Client) Reset(ctx context.Context, prefixes ...keyspace.Key) int {
	touched := c.matching(prefixes)
	for _, e := range touched {
		e.mu.Lock()
		e.gen = c.nextGen()
		e.dataGen = 0
		e.hasData = false
		e.status = EntryStale
		e.err = nil
		e.notFound = false
		e.changed = false
		e.updatedAt = time.Time{}
		e.staleAt = time.Time{}
		e.hasFingerprint = false
		e.mu.Unlock()

		if err := c.store.DeleteByPrefix(ctx, storagePrefix(e.key)); err != nil {
			c.log.Warn("failed to drop cached data", zap.String("key", e.key.String()), zap.Error(err))
		}
		c.metrics.reset(e.key.Domain())

		if c.forget(e) {
			continue
		}
		e.notify()
		if refetch := e.anyRefetch(); refetch != nil {
			c.goBackground("reset", e.key, refetch)
		}
	}

	if len(touched) > 0 {
		c.log.Debug("reset cache entries",
			zap.Strings("prefixes", renderKeys(prefixes)),
			zap.Int("entries", len(touched)),
		)
	}
	return len(touched)
}

// Sweep forgets entries nobody observed for longer than Config.GCTime and
// returns how many were dropped.
func (c *Client) Sweep(ctx context.Context, now time.Time) int {
	var expired []*entry
	c.entries.Range(func(_ string, e *entry) bool {
		e.mu.Lock()
		idle := len(e.observers) == 0 && e.status != EntryFetching && now.Sub(e.lastAccess) >= c.cfg.GCTime
		e.mu.Unlock()
		if idle {
			expired = append(expired, e)
		}
		return true
	})

	dropped := 0
	for _, e := range expired {
		if !c.forget(e) {
			continue
		}
		dropped++
		if err := c.store.DeleteByPrefix(ctx, storagePrefix(e.key)); err != nil {
			c.log.Warn("failed to drop swept data", zap.String("key", e.key.String()), zap.Error(err))
		}
	}
	return dropped
}

func renderKeys(keys []keyspace.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
