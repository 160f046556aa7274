// Package cache provides read-through caching interfaces and key serialization
// for the store decorator.
//
// # Overview
//
// This package exports two interfaces and their default implementations:
//
//   - CacheService: read-through GetOrFetch plus key and prefix invalidation
//   - KeySerializer: builds stable cache keys from method names and arguments
//
// NewCacheService returns the sturdyc-backed implementation. Concurrent misses
// for the same key share one fetch.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("ReadAll", store.Fans)
//
//	fans, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) ([]store.Record, error) {
//		return repo.ReadAll(ctx, store.Fans)
//	})
//
// # Key Format
//
// Keys are "method::arg1::arg2". Scalars (including named scalar types such as
// store.Collection) are written with %v, string slices and string maps get a
// sorted compact form, and anything else is JSON encoded. Since the method name
// leads, DeleteByPrefix("ReadAll::fans") drops every read of that collection.
//
// # Type Safety
//
// GetOrFetch returns ErrInvalidResultType when a key holds a value of another
// type. A nil cached value yields the zero value of T.
package cache
