// Package productset caches the favorites and comparison lists. Both are sets
// of product ids owned by the server; adding a present id or removing an
// absent one still calls the server, which deduplicates.
package productset

import (
	"context"
	"fmt"
	"slices"

	"github.com/goliatone/go-storefront-cache/keyspace"
	"github.com/goliatone/go-storefront-cache/pkg/logger"
	"github.com/goliatone/go-storefront-cache/querycache"
)

// Kind selects the list.
type Kind string

const (
	Favorites  Kind = "favorites"
	Comparison Kind = "comparison"
)

func (k Kind) key(identityID int64) keyspace.Key {
	if k == Comparison {
		return keyspace.ComparisonOf(identityID)
	}
	return keyspace.FavoritesOf(identityID)
}

func (k Kind) event() keyspace.Event {
	if k == Comparison {
		return keyspace.ComparisonChanged
	}
	return keyspace.FavoritesChanged
}

// Set is one read of a list, in server order.
type Set struct {
	Kind Kind    `json:"kind"`
	IDs  []int64 `json:"ids"`
}

// Contains reports whether productID is in the set.
func (s Set) Contains(productID int64) bool {
	return slices.Contains(s.IDs, productID)
}

// Len returns the number of products.
func (s Set) Len() int { return len(s.IDs) }

// API is the server side of both lists.
type API interface {
	ProductSet(ctx context.Context, kind Kind) ([]int64, error)
	AddToSet(ctx context.Context, kind Kind, productID int64) error
	RemoveFromSet(ctx context.Context, kind Kind, productID int64) error
}

// IdentitySource resolves the user reads are keyed under.
type IdentitySource interface {
	CurrentID(ctx context.Context) (int64, error)
}

// Cache is the entity cache of one list.
type Cache struct {
	kind    Kind
	api     API
	ids     IdentitySource
	queries *querycache.Client
	log     logger.Logger
}

// New builds the cache of kind.
func New(kind Kind, api API, ids IdentitySource, queries *querycache.Client, log logger.Logger) *Cache {
	return &Cache{kind: kind, api: api, ids: ids, queries: queries, log: logger.OrNop(log)}
}

// Kind returns the list this cache serves.
func (c *Cache) Kind() Kind { return c.kind }

func (c *Cache) query(ctx context.Context) (querycache.Query[Set], error) {
	id, err := c.ids.CurrentID(ctx)
	if err != nil {
		return querycache.Query[Set]{}, fmt.Errorf("%s: resolve identity: %w", c.kind, err)
	}
	return querycache.Query[Set]{
		Key: c.kind.key(id),
		Fetch: func(ctx context.Context) (Set, error) {
			ids, err := c.api.ProductSet(ctx, c.kind)
			if err != nil {
				return Set{}, err
			}
			return Set{Kind: c.kind, IDs: ids}, nil
		},
	}, nil
}

// Snapshot reads the list of the current identity.
func (c *Cache) Snapshot(ctx context.Context) (querycache.Result[Set], error) {
	q, err := c.query(ctx)
	if err != nil {
		return querycache.Result[Set]{Status: querycache.StatusError, Err: err}, err
	}
	return querycache.Fetch(ctx, c.queries, q)
}

// Observe delivers every change of the list to fn.
func (c *Cache) Observe(ctx context.Context, fn func(querycache.Result[Set])) (func(), error) {
	q, err := c.query(ctx)
	if err != nil {
		return nil, err
	}
	return querycache.Observe(c.queries, q, fn), nil
}

// Contains reads the list and reports whether productID is in it.
func (c *Cache) Contains(ctx context.Context, productID int64) (bool, error) {
	res, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return res.Data.Contains(productID), nil
}

// Add puts productID in the list.
func (c *Cache) Add(ctx context.Context, productID int64) error {
	return c.mutate(ctx, "add", func(ctx context.Context) error {
		return c.api.AddToSet(ctx, c.kind, productID)
	})
}

// Remove takes productID out of the list.
func (c *Cache) Remove(ctx context.Context, productID int64) error {
	return c.mutate(ctx, "remove", func(ctx context.Context) error {
		return c.api.RemoveFromSet(ctx, c.kind, productID)
	})
}

// Toggle adds productID when absent and removes it otherwise, reporting
// whether it is in the list afterwards.
func (c *Cache) Toggle(ctx context.Context, productID int64) (bool, error) {
	present, err := c.Contains(ctx, productID)
	if err != nil {
		return false, err
	}
	if present {
		return false, c.Remove(ctx, productID)
	}
	return true, c.Add(ctx, productID)
}

func (c *Cache) mutate(ctx context.Context, op string, do func(ctx context.Context) error) error {
	_, err := querycache.Mutate(ctx, c.queries, querycache.Mutation[struct{}]{
		Name: string(c.kind) + "." + op,
		Do: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, do(ctx)
		},
		Invalidates: keyspace.Invalidates(c.kind.event()),
	})
	return err
}
