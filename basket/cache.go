package basket

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/querycache"
)

// API is the server side of baskets.
type API interface {
	Baskets(ctx context.Context) ([]Basket, error)
	CreateBasket(ctx context.Context) (Basket, error)
	AddItem(ctx context.Context, basketID, productID int64, quantity int) (Basket, error)
	RemoveItem(ctx context.Context, basketID, productID int64) error
	SetQuantity(ctx context.Context, basketID, productID int64, quantity int) error
}

// IdentitySource resolves the user reads are keyed under.
type IdentitySource interface {
	CurrentID(ctx context.Context) (int64, error)
}

// Cache is the basket entity cache.
type Cache struct {
	api     API
	ids     IdentitySource
	queries *querycache.Client
	log     logger.Logger
}

// New builds the basket cache.
func New(api API, ids IdentitySource, queries *querycache.Client, log logger.Logger) *Cache {
	return &Cache{api: api, ids: ids, queries: queries, log: logger.OrNop(log)}
}

func (c *Cache) query(ctx context.Context) (querycache.Query[Snapshot], error) {
	id, err := c.ids.CurrentID(ctx)
	if err != nil {
		return querycache.Query[Snapshot]{}, fmt.Errorf("basket: resolve identity: %w", err)
	}
	return querycache.Query[Snapshot]{
		Key: keyspace.Basket(id),
		Fetch: func(ctx context.Context) (Snapshot, error) {
			baskets, err := c.api.Baskets(ctx)
			if err != nil {
				return Snapshot{}, err
			}
			return Snapshot{Baskets: baskets}, nil
		},
	}, nil
}

// Snapshot reads the baskets of the current identity.
func (c *Cache) Snapshot(ctx context.Context) (querycache.Result[Snapshot], error) {
	q, err := c.query(ctx)
	if err != nil {
		return querycache.Result[Snapshot]{Status: querycache.StatusError, Err: err}, err
	}
	return querycache.Fetch(ctx, c.queries, q)
}

// Observe delivers every change of the current identity's basket to fn.
func (c *Cache) Observe(ctx context.Context, fn func(querycache.Result[Snapshot])) (func(), error) {
	q, err := c.query(ctx)
	if err != nil {
		return nil, err
	}
	return querycache.Observe(c.queries, q, fn), nil
}

// Create opens a new basket.
func (c *Cache) Create(ctx context.Context) (Basket, error) {
	return querycache.Mutate(ctx, c.queries, querycache.Mutation[Basket]{
		Name:        "basket.create",
		Do:          c.api.CreateBasket,
		Invalidates: keyspace.Invalidates(keyspace.BasketChanged),
	})
}

// AddItem adds quantity units of productID, creating a basket first when the
// identity has none.
func (c *Cache) AddItem(ctx context.Context, productID int64, quantity int) (Basket, error) {
	if quantity < 1 {
		return Basket{}, ErrInvalidQuantity
	}
	return querycache.Mutate(ctx, c.queries, querycache.Mutation[Basket]{
		Name: "basket.add_item",
		Do: func(ctx context.Context) (Basket, error) {
			id, err := c.currentID(ctx)
			if errors.Is(err, ErrNoBasket) {
				created, cerr := c.api.CreateBasket(ctx)
				if cerr != nil {
					return Basket{}, cerr
				}
				c.log.Debug("created basket for first item", zap.Int64("basket", created.ID))
				id, err = created.ID, nil
			}
			if err != nil {
				return Basket{}, err
			}
			return c.api.AddItem(ctx, id, productID, quantity)
		},
		Invalidates: keyspace.Invalidates(keyspace.BasketChanged),
	})
}

// RemoveItem drops the line of productID.
func (c *Cache) RemoveItem(ctx context.Context, productID int64) error {
	_, err := querycache.Mutate(ctx, c.queries, querycache.Mutation[struct{}]{
		Name: "basket.remove_item",
		Do: func(ctx context.Context) (struct{}, error) {
			id, err := c.currentID(ctx)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, c.api.RemoveItem(ctx, id, productID)
		},
		Invalidates: keyspace.Invalidates(keyspace.BasketChanged),
	})
	return err
}

// SetQuantity replaces the quantity of productID.
func (c *Cache) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	_, err := querycache.Mutate(ctx, c.queries, querycache.Mutation[struct{}]{
		Name: "basket.set_quantity",
		Do: func(ctx context.Context) (struct{}, error) {
			id, err := c.currentID(ctx)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, c.api.SetQuantity(ctx, id, productID, quantity)
		},
		Invalidates: keyspace.Invalidates(keyspace.BasketChanged),
	})
	return err
}

// currentID returns the id of the basket items go to.
func (c *Cache) currentID(ctx context.Context) (int64, error) {
	res, err := c.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	b, ok := res.Data.Current()
	if !ok {
		return 0, ErrNoBasket
	}
	return b.ID, nil
}
