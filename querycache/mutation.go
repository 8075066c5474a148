package querycache

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/keyspace"
)

// ErrNilMutation is returned by Mutate when the mutation has nothing to run.
var ErrNilMutation = errors.New("querycache: mutation without function")

// Mutation is a server call changing data other reads depend on.
type Mutation[T any] struct {
	// Name labels logs and metrics, e.g. "basket.add_item".
	Name string

	Do func(ctx context.Context) (T, error)

	// Invalidates lists the prefixes made untrustworthy by a successful call,
	// usually keyspace.Invalidates of the event the mutation reports.
	Invalidates []keyspace.Key

	// OnSuccess runs after the call succeeds and before invalidation.
	OnSuccess func(ctx context.Context, result T)
}

// Mutate runs m once. It is never retried. On success the invalidations have
// been applied when Mutate returns, so a read issued afterwards never observes
// pre-mutation data as fresh. On failure the cache is left untouched.
func Mutate[T any](ctx context.Context, c *Client, m Mutation[T]) (T, error) {
	if m.Do == nil {
		var zero T
		return zero, ErrNilMutation
	}

	log := c.log.With(
		zap.String("mutation", m.Name),
		zap.String("mutation_id", uuid.NewString()),
	)

	start := c.now()
	result, err := m.Do(ctx)
	if err != nil {
		c.metrics.mutated(m.Name, "error")
		log.Warn("mutation failed", zap.Error(err), zap.Duration("took", c.now().Sub(start)))
		c.reportError(ctx, ErrorEvent{Mutation: m.Name, Err: err})
		return result, err
	}

	if m.OnSuccess != nil {
		m.OnSuccess(ctx, result)
	}
	n := c.Invalidate(ctx, m.Invalidates...)

	c.metrics.mutated(m.Name, "ok")
	log.Debug("mutation applied",
		zap.Int("invalidated", n),
		zap.Duration("took", c.now().Sub(start)),
	)
	return result, nil
}
