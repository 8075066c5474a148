// Package orders caches the order history of the current identity.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/basket"
	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/querycache"
	"github.com/goliatone/go-storefront-cache/sessionhint"
)

// Details is what the customer fills in at checkout.
type Details struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Order is a placed order.
type Order struct {
	ID        int64           `json:"id"`
	BasketID  int64           `json:"basket_id"`
	Status    string          `json:"status"`
	Items     []basket.Item   `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Details   Details         `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// Page is one page of the order history.
type Page struct {
	Orders []Order `json:"orders"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
	Total  int     `json:"total"`
}

// Filter narrows the order history.
type Filter struct {
	Status string `json:"status,omitempty"`
}

// KeySegment renders the filter as a cache key segment.
func (f Filter) KeySegment() string {
	return "status=" + f.Status
}

// API is the server side of orders. Order must report an unknown id with an
// error the cache classifies as not found.
type API interface {
	Orders(ctx context.Context, page int, filter Filter) (Page, error)
	Order(ctx context.Context, id int64) (Order, error)
	CreateOrder(ctx context.Context, basketID int64, details Details) (Order, error)
}

// IdentitySource resolves the user reads are keyed under.
type IdentitySource interface {
	CurrentID(ctx context.Context) (int64, error)
}

// Cache is the orders entity cache.
type Cache struct {
	api     API
	ids     IdentitySource
	queries *querycache.Client
	hints   sessionhint.Store
	log     logger.Logger
}

// New builds the orders cache. hints may be nil.
func New(api API, ids IdentitySource, queries *querycache.Client, hints sessionhint.Store, log logger.Logger) *Cache {
	return &Cache{api: api, ids: ids, queries: queries, hints: hints, log: logger.OrNop(log)}
}

// List reads one page of the order history. Pages start at 1.
func (c *Cache) List(ctx context.Context, page int, filter Filter) (querycache.Result[Page], error) {
	if page < 1 {
		page = 1
	}
	id, err := c.ids.CurrentID(ctx)
	if err != nil {
		err = fmt.Errorf("orders: resolve identity: %w", err)
		return querycache.Result[Page]{Status: querycache.StatusError, Err: err}, err
	}
	return querycache.Fetch(ctx, c.queries, querycache.Query[Page]{
		Key: keyspace.OrderList(id, page, filter),
		Fetch: func(ctx context.Context) (Page, error) {
			return c.api.Orders(ctx, page, filter)
		},
	})
}

// Detail reads one order. An unknown order ends in a terminal not found
// result which is not fetched again until orders are invalidated.
func (c *Cache) Detail(ctx context.Context, orderID int64) (querycache.Result[Order], error) {
	id, err := c.ids.CurrentID(ctx)
	if err != nil {
		err = fmt.Errorf("orders: resolve identity: %w", err)
		return querycache.Result[Order]{Status: querycache.StatusError, Err: err}, err
	}
	return querycache.Fetch(ctx, c.queries, querycache.Query[Order]{
		Key: keyspace.OrderDetail(id, orderID),
		Fetch: func(ctx context.Context) (Order, error) {
			return c.api.Order(ctx, orderID)
		},
	})
}

// Create places an order for basketID. Success invalidates orders, baskets
// and product reads, and records the order as the session's last one.
func (c *Cache) Create(ctx context.Context, basketID int64, details Details) (Order, error) {
	return querycache.Mutate(ctx, c.queries, querycache.Mutation[Order]{
		Name: "orders.create",
		Do: func(ctx context.Context) (Order, error) {
			return c.api.CreateOrder(ctx, basketID, details)
		},
		Invalidates: keyspace.Invalidates(keyspace.OrderCreated),
		OnSuccess: func(ctx context.Context, o Order) {
			if c.hints == nil {
				return
			}
			if err := c.hints.Put(ctx, sessionhint.LastOrderID, o.ID); err != nil {
				c.log.Warn("failed to record last order", zap.Int64("order", o.ID), zap.Error(err))
			}
		},
	})
}

// LastOrderID returns the order most recently created in this session.
func (c *Cache) LastOrderID(ctx context.Context) (int64, bool) {
	if c.hints == nil {
		return 0, false
	}
	var id int64
	ok, err := c.hints.Get(ctx, sessionhint.LastOrderID, &id)
	if err != nil {
		c.log.Warn("failed to read last order hint", zap.Error(err))
		return 0, false
	}
	return id, ok
}
