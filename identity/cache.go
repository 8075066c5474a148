package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/querycache"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.log = logger.OrNop(l) }
}

// WithUnauthorizedPolicy decides which errors are authentication failures.
func WithUnauthorizedPolicy(fn func(error) bool) Option {
	return func(c *Cache) {
		if fn != nil {
			c.unauthorized = fn
		}
	}
}

// Cache holds the current identity.
type Cache struct {
	api          API
	queries      *querycache.Client
	log          logger.Logger
	unauthorized func(error) bool

	mu       sync.Mutex
	status   Status
	current  *Identity
	routing  bool
	subs     map[uint64]func(Transition)
	guards   map[uint64]*Guard
	seq      uint64
	handling atomic.Bool

	// pending holds transitions not yet delivered; delivering is set while
	// one goroutine drains it, so transitions reach subscribers in order.
	pending    []Transition
	delivering bool
}

// New builds the identity cache. Nothing is read until Current is called.
func New(api API, queries *querycache.Client, opts ...Option) *Cache {
	c := &Cache{
		api:          api,
		queries:      queries,
		log:          logger.Nop(),
		unauthorized: func(err error) bool { return errors.Is(err, ErrUnauthorized) },
		status:       StatusLoading,
		subs:         make(map[uint64]func(Transition)),
		guards:       make(map[uint64]*Guard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) query() querycache.Query[*Identity] {
	return querycache.Query[*Identity]{
		Key: keyspace.Session(),
		Fetch: func(ctx context.Context) (*Identity, error) {
			id, err := c.api.CurrentIdentity(ctx)
			if err != nil && c.unauthorized(err) {
				// no valid credential is an anonymous session, not a failure
				return nil, nil
			}
			return id, err
		},
		StaleTime: querycache.Infinite,
		Expiry:    (*Identity).ExpiresAt,
	}
}

// Current returns the current identity, reading it when it is not cached or
// its token has expired. A nil identity with StatusUnauthenticated is an
// anonymous session.
func (c *Cache) Current(ctx context.Context) (*Identity, Status, error) {
	res, err := querycache.Fetch(ctx, c.queries, c.query())
	status := c.publish(res)
	return res.Data, status, err
}

// CurrentID returns the id of the current user, 0 when anonymous.
func (c *Cache) CurrentID(ctx context.Context) (int64, error) {
	id, _, err := c.Current(ctx)
	if err != nil {
		return 0, err
	}
	return id.id(), nil
}

// Invalidate forces the identity to be re-read and publishes the resulting
// transition before returning.
func (c *Cache) Invalidate(ctx context.Context) (Status, error) {
	c.queries.Invalidate(ctx, keyspace.Invalidates(keyspace.IdentityChanged)...)
	_, status, err := c.Current(ctx)
	return status, err
}

// Status returns StatusLoading while the identity is being read and the last
// published status otherwise.
func (c *Cache) Status() Status {
	if st, ok := c.queries.Status(keyspace.Session()); ok && st == querycache.EntryFetching {
		return StatusLoading
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Identity returns the last published identity.
func (c *Cache) Identity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Token returns the bearer token of the current user, empty when anonymous.
func (c *Cache) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current.Authenticated() {
		return ""
	}
	return c.current.AccessToken
}

// SignIn authenticates and re-reads the identity, whether the call succeeded
// or not.
func (c *Cache) SignIn(ctx context.Context, creds Credentials) error {
	return c.afterAuthCall(ctx, "sign_in", c.api.SignIn(ctx, creds))
}

// SignOut ends the session and re-reads the identity.
func (c *Cache) SignOut(ctx context.Context) error {
	return c.afterAuthCall(ctx, "sign_out", c.api.SignOut(ctx))
}

// Register creates a user and re-reads the identity.
func (c *Cache) Register(ctx context.Context, reg Registration) error {
	return c.afterAuthCall(ctx, "register", c.api.Register(ctx, reg))
}

func (c *Cache) afterAuthCall(ctx context.Context, flow string, callErr error) error {
	if callErr != nil {
		c.log.Warn("auth call failed", zap.String("flow", flow), zap.Error(callErr))
	}
	_, err := c.Invalidate(ctx)
	if callErr != nil {
		return callErr
	}
	return err
}

// HandleError re-reads the identity when err is an authentication failure,
// reporting whether it did. Failures raised while already handling one are
// ignored.
func (c *Cache) HandleError(ctx context.Context, err error) bool {
	if err == nil || !c.unauthorized(err) {
		return false
	}
	if !c.handling.CompareAndSwap(false, true) {
		return false
	}
	defer c.handling.Store(false)

	c.log.Info("authentication failure, re-reading identity", zap.Error(err))
	if _, ierr := c.Invalidate(ctx); ierr != nil {
		c.log.Warn("identity re-read failed", zap.Error(ierr))
	}
	return true
}

// Subscribe registers fn for every transition. Subscribers run synchronously,
// in registration order, before the call causing the transition returns. A
// transition caused from inside a subscriber or guard runs right after the
// one being delivered.
func (c *Cache) Subscribe(fn func(Transition)) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SetRouting tells the cache whether a navigation is in progress. Guards never
// fire while routing and are re-evaluated once it ends.
func (c *Cache) SetRouting(routing bool) {
	c.mu.Lock()
	c.routing = routing
	status := c.status
	guards := c.guardList()
	c.mu.Unlock()

	if routing {
		return
	}
	for _, g := range guards {
		g.evaluate(status, false)
	}
}

// publish derives the status of res and, when it or the user changed, queues
// a transition for subscribers and guards. No lock is held while they run, so
// callbacks may read the session or any other cache. A transition raised from
// inside a callback is delivered by the outer publish once the current one is
// done.
func (c *Cache) publish(res querycache.Result[*Identity]) Status {
	next := statusOf(res)
	cur := res.Data

	c.mu.Lock()
	prev, prevIdentity := c.status, c.current
	if next == StatusLoading || (next == prev && prevIdentity.id() == cur.id()) {
		if next != StatusLoading {
			c.current = cur
		}
		c.mu.Unlock()
		return prev
	}
	c.status, c.current = next, cur
	c.pending = append(c.pending, Transition{From: prev, To: next, Previous: prevIdentity, Current: cur})
	if c.delivering {
		c.mu.Unlock()
		return next
	}
	c.delivering = true
	c.mu.Unlock()

	c.deliver()
	return next
}

// deliver runs queued transitions until none are left.
func (c *Cache) deliver() {
	done := false
	defer func() {
		if !done {
			c.mu.Lock()
			c.delivering = false
			c.mu.Unlock()
		}
	}()

	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.delivering = false
			c.mu.Unlock()
			done = true
			return
		}
		t := c.pending[0]
		c.pending = c.pending[1:]
		routing := c.routing
		subs := c.subList()
		guards := c.guardList()
		c.mu.Unlock()

		c.log.Info("identity transition",
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Int64("user", t.Current.id()),
		)
		for _, fn := range subs {
			fn(t)
		}
		for _, g := range guards {
			g.evaluate(t.To, routing)
		}
	}
}

func statusOf(res querycache.Result[*Identity]) Status {
	switch {
	case res.HasData && res.Data.Authenticated():
		return StatusAuthenticated
	case res.HasData, res.Status == querycache.StatusError:
		return StatusUnauthenticated
	default:
		return StatusLoading
	}
}

func (c *Cache) subList() []func(Transition) {
	ids := sortedIDs(c.subs)
	out := make([]func(Transition), len(ids))
	for i, id := range ids {
		out[i] = c.subs[id]
	}
	return out
}

func (c *Cache) guardList() []*Guard {
	ids := sortedIDs(c.guards)
	out := make([]*Guard, len(ids))
	for i, id := range ids {
		out[i] = c.guards[id]
	}
	return out
}
