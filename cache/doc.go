// Package cache provides the cache table contract and key serialization shared
// by every storefront read.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - CacheService: the process wide table holding server reads, with
//     request coalescing and missing record storage (backed by sturdyc)
//   - KeySerializer: renders discriminators into stable key segments
//
// Nothing outside the querycache package should talk to a CacheService
// directly; entries are written only by completed reads and removed only by
// invalidation, reset or garbage collection.
//
// # Basic Usage
//
//	service, err := cache.NewCacheService(cache.DefaultConfig())
//	basket, err := cache.GetOrFetch(ctx, service, "basket::7", func(ctx context.Context) (Basket, error) {
//		return api.Baskets(ctx)
//	})
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection to handle various Go types:
//
//   - Segmenter values: their KeySegment is used verbatim
//   - Basic types: direct string representation
//   - Strings: raw at the top level, quoted when nested in composites
//   - Slices/arrays: recursive serialization of elements with their length
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: type name plus exported fields with name:value pairs
//   - Complex types: JSON fallback
//
// Function and channel values serialize by pointer and are only stable within
// a single process. Keys are never built from them in this module.
//
// # Missing Records
//
// A fetch function returning an error wrapping ErrNotFound marks the key as
// missing. Every later read of that key reports ErrNotFound without reaching
// the server, which gives 404s their terminal, non-retriable semantics.
//
// # Fingerprints
//
// Fingerprint hashes the msgpack encoding of a value with xxhash. The query
// layer compares fingerprints of consecutive reads to decide whether observers
// need to hear about a refetch.
package cache
