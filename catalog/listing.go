package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/navigation"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/querycache"
	"github.com/goliatone/go-storefront-cache/sessionhint"
)

// Product is one listed product.
type Product struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	InStock      bool            `json:"in_stock"`
}

// Page is one product list read with the facets reported alongside it.
type Page struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
	Total    int       `json:"total"`
	Facets   []Facet   `json:"facets,omitempty"`
}

// ListParams is everything a product list read depends on.
type ListParams struct {
	Filters  FilterSet
	Order    string
	Page     int
	PageSize int
}

// KeySegment renders the params as a cache key segment.
func (p ListParams) KeySegment() string {
	return fmt.Sprintf("%s;order=%q;page=%d;size=%d", p.Filters.KeySegment(), p.Order, p.Page, p.PageSize)
}

// Query renders the params as request parameters.
func (p ListParams) Query() url.Values {
	q := EncodeQuery(State{Filters: p.Filters, Order: p.Order, Page: p.Page})
	q.Set("page_size", strconv.Itoa(p.PageSize))
	return q
}

// API is the server side of product lists.
type API interface {
	Products(ctx context.Context, params ListParams) (Page, error)
}

// View is what a listing renders.
type View struct {
	State       State
	Result      querycache.Result[Page]
	Definitions Definitions
}

type shown struct {
	context string
	result  querycache.Result[Page]
}

// Listing binds the reducer to the URL and to product list reads. The reducer
// is the only writer of the state; the URL mirrors it.
type Listing struct {
	api     API
	queries *querycache.Client
	router  navigation.Router
	hints   sessionhint.Store
	cfg     Config
	log     logger.Logger

	mu          sync.Mutex
	path        string
	base        FilterSet
	state       State
	context     string
	defs        Definitions
	last        *shown
	unsubscribe func()
}

// NewListing builds a listing. hints may be nil.
func NewListing(api API, queries *querycache.Client, router navigation.Router, hints sessionhint.Store, cfg Config, log logger.Logger) (*Listing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: invalid config: %w", err)
	}
	return &Listing{
		api:     api,
		queries: queries,
		router:  router,
		hints:   hints,
		cfg:     cfg,
		log:     logger.OrNop(log),
		state:   NewState(FilterSet{}),
	}, nil
}

// Mount starts the listing at the router's current location. base holds the
// filters the path implies, such as its category. Navigations back to the
// same path with another query re-hydrate the state until Unmount.
func (l *Listing) Mount(ctx context.Context, base FilterSet) (State, error) {
	loc := l.router.Location()
	decoded := DecodeQuery(loc.Query, base)

	l.mu.Lock()
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	l.path, l.base = loc.Path, base
	l.mu.Unlock()

	state := l.apply(Hydrate{State: decoded})

	unsubscribe := l.router.Subscribe(l.follow)
	l.mu.Lock()
	l.unsubscribe = unsubscribe
	l.mu.Unlock()

	return state, l.sync(ctx, true)
}

// Unmount stops following navigations.
func (l *Listing) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
}

// Dispatch reduces a into the state and mirrors the result to the URL. Base
// filters given to Mount cannot be removed, only changed.
func (l *Listing) Dispatch(ctx context.Context, a Action) (State, error) {
	state := l.apply(a)
	return state, l.sync(ctx, false)
}

// State returns the current state.
func (l *Listing) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Definitions returns the facets learned in the current context.
func (l *Listing) Definitions() Definitions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defs
}

func (l *Listing) apply(a Action) State {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := Pin(Reduce(l.state, a), l.base)
	if ctxSig := l.contextOf(next.Filters); ctxSig != l.context {
		// another category's products and bounds must never be shown here
		l.log.Debug("listing context changed", zap.String("from", l.context), zap.String("to", ctxSig))
		l.context = ctxSig
		l.defs = Definitions{}
		l.last = nil
	}
	l.state = next
	return next
}

func (l *Listing) contextOf(fs FilterSet) string {
	return fs.Only(l.cfg.ContextFields...).KeySegment()
}

func (l *Listing) params(s State) ListParams {
	return ListParams{Filters: s.Filters, Order: s.Order, Page: s.Page, PageSize: l.cfg.PageSize}
}

func (l *Listing) query(p ListParams) querycache.Query[Page] {
	return querycache.Query[Page]{
		Key: keyspace.ProductList(p),
		Fetch: func(ctx context.Context) (Page, error) {
			return l.api.Products(ctx, p)
		},
		StaleTime: l.cfg.StaleTime,
	}
}

// Load reads the product list of the current state, learns its facets and
// returns the resulting view.
func (l *Listing) Load(ctx context.Context) (View, error) {
	l.mu.Lock()
	state, ctxSig := l.state, l.context
	l.mu.Unlock()

	res, err := querycache.Fetch(ctx, l.queries, l.query(l.params(state)))

	l.mu.Lock()
	if res.HasData && ctxSig == l.context {
		l.defs = l.defs.Merge(res.Data.Facets)
		l.last = &shown{context: ctxSig, result: res}
	}
	defs := l.defs
	l.mu.Unlock()

	return View{State: state, Result: res, Definitions: defs}, err
}

// View returns what to render now without fetching. While the current page
// loads, the last result of the same context is shown as a placeholder; after
// a context change nothing is.
func (l *Listing) View() View {
	l.mu.Lock()
	state, ctxSig, defs, last := l.state, l.context, l.defs, l.last
	l.mu.Unlock()

	res := querycache.Peek[Page](l.queries, keyspace.ProductList(l.params(state)))
	if !res.HasData && res.Status != querycache.StatusError && last != nil && last.context == ctxSig {
		placeholder := last.result
		placeholder.IsPlaceholder = true
		placeholder.Status = querycache.StatusSuccess
		placeholder.Entry = res.Entry
		res = placeholder
	}
	return View{State: state, Result: res, Definitions: defs}
}

// Sync writes the state to the URL if they differ.
func (l *Listing) Sync(ctx context.Context) error {
	return l.sync(ctx, false)
}

func (l *Listing) sync(ctx context.Context, replace bool) error {
	l.mu.Lock()
	path, state := l.path, l.state
	l.mu.Unlock()

	target := navigation.Location{Path: path, Query: EncodeQuery(state)}
	current := l.router.Location()
	if current.Path == target.Path && current.Query.Encode() == target.Query.Encode() {
		l.rememberPath(ctx, target)
		return nil
	}

	var err error
	if replace {
		err = l.router.Replace(ctx, target)
	} else {
		err = l.router.Push(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("catalog: sync url: %w", err)
	}
	l.rememberPath(ctx, target)
	return nil
}

func (l *Listing) rememberPath(ctx context.Context, loc navigation.Location) {
	if l.hints == nil {
		return
	}
	if err := l.hints.Put(ctx, sessionhint.LastCatalogPath, loc.String()); err != nil {
		l.log.Warn("failed to record catalog path", zap.Error(err))
	}
}

// follow re-hydrates from navigations that change the query of the mounted
// path, such as going back.
func (l *Listing) follow(ev navigation.Event, loc navigation.Location) {
	if ev != navigation.Completed {
		return
	}
	l.mu.Lock()
	path, base, state := l.path, l.base, l.state
	l.mu.Unlock()
	if loc.Path != path {
		return
	}
	decoded := DecodeQuery(loc.Query, base)
	if decoded.Equal(state) {
		return
	}
	l.apply(Hydrate{State: decoded})
}
