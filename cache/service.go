package cache

import (
	"context"
	"errors"

	"github.com/goliatone/go-storefront-cache/internal/cacheinfra"
)

// ErrNotFound marks a definitively absent record. Fetch functions wrap it to
// turn a 404 into a terminal, non-retriable state for their key.
var ErrNotFound = cacheinfra.ErrNotFound

// ErrInvalidResultType is returned when a stored value does not match the type
// the caller asked for. Two reads using one key with different types is a bug
// in key construction.
var ErrInvalidResultType = errors.New("cache: stored value has unexpected type")

// KeySerializer builds a cache key segment list from a domain name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(domain string, args ...any) string
	SerializeValue(v any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the process wide table every cached server read lives in.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Get(ctx context.Context, key string) (any, bool)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		var zero T
		return zero, err
	}
	if result == nil {
		var zero T
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, ErrInvalidResultType
	}
	return typed, nil
}

// Get is the typed counterpart of CacheService.Get. A stored value of another
// type is reported as absent.
func Get[T any](ctx context.Context, service CacheService, key string) (T, bool) {
	var zero T
	result, ok := service.Get(ctx, key)
	if !ok || result == nil {
		return zero, ok && result == nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
