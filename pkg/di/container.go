// Package di wires the storefront caches into one Container.
package di

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/basket"
	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/cascade"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/navigation"
	"github.com/goliatone/go-storefront-cache/orders"
	"github.com/goliatone/go-storefront-cache/pkg/config"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/productset"
	"github.com/goliatone/go-storefront-cache/querycache"
	"github.com/goliatone/go-storefront-cache/sessionhint"
	"github.com/goliatone/go-storefront-cache/transport"
)

// Backend is the full storefront API. *transport.Client implements it.
type Backend interface {
	identity.API
	basket.API
	productset.API
	orders.API
	catalog.API
}

// Option customizes a Container.
type Option func(*options)

type options struct {
	log        logger.Logger
	backend    Backend
	router     navigation.Router
	hints      sessionhint.Store
	registerer prometheus.Registerer
	transport  []transport.Option
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithBackend serves every read and mutation from b instead of the HTTP client.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithRouter sets the router the catalog listing and auth guards follow.
func WithRouter(r navigation.Router) Option {
	return func(o *options) { o.router = r }
}

// WithHints sets the session hint store.
func WithHints(s sessionhint.Store) Option {
	return func(o *options) { o.hints = s }
}

// WithRegisterer registers the query cache metrics with reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTransportOptions passes opts to the HTTP client.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// Container holds one instance of every storefront component, wired so that
// identity transitions cascade into the per-user caches.
type Container struct {
	config config.Config
	log    logger.Logger

	store   cache.CacheService
	queries *querycache.Client
	janitor *querycache.Janitor
	metrics *querycache.Metrics

	client  *transport.Client
	backend Backend
	router  navigation.Router
	hints   sessionhint.Store

	identity   *identity.Cache
	basket     *basket.Cache
	favorites  *productset.Cache
	comparison *productset.Cache
	orders     *orders.Cache
	listing    *catalog.Listing
	cascade    *cascade.Controller

	stopRouting func()
	closeOnce   sync.Once
}

// NewContainer builds and starts every component from cfg.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{config: cfg, log: o.log}
	if c.log == nil {
		l, err := logger.New(cfg.Logger)
		if err != nil {
			return nil, err
		}
		c.log = l
	}

	store, err := cache.NewCacheService(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("di: cache store: %w", err)
	}
	c.store = store

	qopts := []querycache.Option{
		querycache.WithLogger(c.log.With(zap.String("component", "querycache"))),
		querycache.WithRetryPolicy(transport.Retryable),
		querycache.WithErrorHook(c.handleError),
	}
	if cfg.Metrics.Enabled {
		c.metrics = querycache.NewMetrics(cfg.Metrics.Namespace)
		if err := c.metrics.Register(o.registerer); err != nil {
			return nil, fmt.Errorf("di: register metrics: %w", err)
		}
		qopts = append(qopts, querycache.WithMetrics(c.metrics))
	}
	if c.queries, err = querycache.New(store, cfg.Queries, qopts...); err != nil {
		return nil, err
	}
	if c.janitor, err = querycache.NewJanitor(c.queries); err != nil {
		return nil, err
	}

	c.backend = o.backend
	if c.backend == nil {
		topts := append([]transport.Option{
			transport.WithLogger(c.log.With(zap.String("component", "transport"))),
			transport.WithTokenSource(transport.TokenFunc(c.token)),
		}, o.transport...)
		if c.client, err = transport.New(cfg.Transport, topts...); err != nil {
			return nil, err
		}
		c.backend = c.client
	}

	c.hints = o.hints
	if c.hints == nil {
		c.hints = sessionhint.NewMemory()
	}
	c.router = o.router
	if c.router == nil {
		c.router = navigation.NewMemory(navigation.Location{Path: "/"})
	}

	c.identity = identity.New(c.backend, c.queries, identity.WithLogger(c.log.With(zap.String("component", "identity"))))
	c.basket = basket.New(c.backend, c.identity, c.queries, c.log)
	c.favorites = productset.New(productset.Favorites, c.backend, c.identity, c.queries, c.log)
	c.comparison = productset.New(productset.Comparison, c.backend, c.identity, c.queries, c.log)
	c.orders = orders.New(c.backend, c.identity, c.queries, c.hints, c.log)
	if c.listing, err = catalog.NewListing(c.backend, c.queries, c.router, c.hints, cfg.Catalog, c.log); err != nil {
		return nil, err
	}

	c.cascade = cascade.New(c.queries, c.hints, c.log.With(zap.String("component", "cascade")))
	c.cascade.Attach(c.identity)
	c.stopRouting = c.router.Subscribe(func(ev navigation.Event, _ navigation.Location) {
		c.identity.SetRouting(ev == navigation.Started)
	})
	c.janitor.Start()

	c.log.Info("storefront container ready",
		zap.Bool("http", c.client != nil),
		zap.Bool("metrics", c.metrics != nil),
	)
	return c, nil
}

// NewContainerWithDefaults loads the configuration from the environment and
// builds a Container from it.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	return NewContainer(cfg, opts...)
}

func (c *Container) token() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.Token()
}

func (c *Container) handleError(ctx context.Context, ev querycache.ErrorEvent) {
	if c.identity == nil {
		return
	}
	if c.identity.HandleError(ctx, ev.Err) {
		c.log.Debug("identity refreshed after failed call",
			zap.String("key", ev.Key.String()),
			zap.String("mutation", ev.Mutation),
		)
	}
}

// Close stops background work and detaches every subscription. It waits for
// in-flight background refetches.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.janitor.Stop()
		c.stopRouting()
		c.cascade.Detach()
		c.listing.Unmount()
		c.queries.Wait()
		_ = c.log.Sync()
	})
	return nil
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config { return c.config }

// Logger returns the container logger.
func (c *Container) Logger() logger.Logger { return c.log }

// CacheService returns the shared cache table.
func (c *Container) CacheService() cache.CacheService { return c.store }

// Queries returns the query cache.
func (c *Container) Queries() *querycache.Client { return c.queries }

// Metrics returns the query cache collectors, nil when disabled.
func (c *Container) Metrics() *querycache.Metrics { return c.metrics }

// Client returns the HTTP client, nil when a backend was injected.
func (c *Container) Client() *transport.Client { return c.client }

// Router returns the navigation router.
func (c *Container) Router() navigation.Router { return c.router }

// Hints returns the session hint store.
func (c *Container) Hints() sessionhint.Store { return c.hints }

// Identity returns the identity cache.
func (c *Container) Identity() *identity.Cache { return c.identity }

// Basket returns the basket cache.
func (c *Container) Basket() *basket.Cache { return c.basket }

// Favorites returns the favorites cache.
func (c *Container) Favorites() *productset.Cache { return c.favorites }

// Comparison returns the comparison cache.
func (c *Container) Comparison() *productset.Cache { return c.comparison }

// Orders returns the orders cache.
func (c *Container) Orders() *orders.Cache { return c.orders }

// Listing returns the catalog listing.
func (c *Container) Listing() *catalog.Listing { return c.listing }

// Cascade returns the cascade controller.
func (c *Container) Cascade() *cascade.Controller { return c.cascade }
