// Package repositorycache provides a caching decorator for the record store.
//
// CachedStore wraps any store.Store and serves ReadAll and Leaderboard through
// a cache.CacheService. Every read is registered under a tag naming the
// collection it depends on; the leaderboard depends on fans. Writes through
// the decorator drop the tagged reads of the collection they touched.
//
// Writes made directly on a store.Repository (registrations, subscriptions,
// queue moves) reach the decorator through the change listener:
//
//	repo := store.NewRepository(backend)
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//	cached := repositorycache.New(repo, svc, cache.NewDefaultKeySerializer())
//	repo.OnChange(cached.InvalidateCollection)
//
// Callers may attach their own tags to a read with WithCacheTags and drop
// them later with InvalidateTags.
//
// Records handed out are copies. Mutating them does not touch the cache.
package repositorycache
