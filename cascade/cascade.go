// Package cascade keeps per-user caches consistent with the signed in user.
// It reacts to identity transitions synchronously, so a dropped or refreshed
// entry is in place before the call causing the transition returns.
package cascade

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/sessionhint"
)

// Queries is the part of the query cache the controller drives.
type Queries interface {
	Invalidate(ctx context.Context, prefixes ...keyspace.Key) int
	Reset(ctx context.Context, prefixes ...keyspace.Key) int
}

// Source publishes identity transitions.
type Source interface {
	Subscribe(fn func(identity.Transition)) (unsubscribe func())
}

// Action is what a transition caused.
type Action string

const (
	ActionNone       Action = "none"
	ActionReset      Action = "reset"
	ActionInvalidate Action = "invalidate"
)

// Controller maps identity transitions onto per-user cache operations.
type Controller struct {
	queries Queries
	hints   sessionhint.Store
	log     logger.Logger
	prefix  []keyspace.Key

	mu          sync.Mutex
	unsubscribe func()
}

// New builds a controller over the per-user prefixes. hints may be nil.
func New(queries Queries, hints sessionhint.Store, log logger.Logger) *Controller {
	return &Controller{
		queries: queries,
		hints:   hints,
		log:     logger.OrNop(log),
		prefix:  keyspace.PerUser(),
	}
}

// Attach starts following src, replacing any previous source.
func (c *Controller) Attach(src Source) {
	unsubscribe := src.Subscribe(func(t identity.Transition) {
		c.Handle(context.Background(), t)
	})

	c.mu.Lock()
	prev := c.unsubscribe
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Detach stops following the source.
func (c *Controller) Detach() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Handle applies one transition. Signing out or switching users drops every
// per-user entry, data included; signing in from an anonymous session marks
// them stale so anonymous state merged by the server is read again.
func (c *Controller) Handle(ctx context.Context, t identity.Transition) Action {
	switch {
	case t.SignedOut(), t.UserChanged():
		n := c.queries.Reset(ctx, c.prefix...)
		c.forgetHints(ctx)
		c.log.Info("per-user caches reset",
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Int("entries", n),
		)
		return ActionReset
	case t.SignedIn() && t.From == identity.StatusUnauthenticated:
		n := c.queries.Invalidate(ctx, c.prefix...)
		c.log.Info("per-user caches invalidated", zap.Int("entries", n))
		return ActionInvalidate
	}
	return ActionNone
}

func (c *Controller) forgetHints(ctx context.Context) {
	if c.hints == nil {
		return
	}
	if err := c.hints.Delete(ctx, sessionhint.LastOrderID); err != nil {
		c.log.Warn("failed to drop session hint", zap.String("hint", sessionhint.LastOrderID), zap.Error(err))
	}
}
