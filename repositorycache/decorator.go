package repositorycache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-store/cache"
	"github.com/goliatone/go-offline-store/store"
)

var _ store.Store = (*CachedStore)(nil)

const (
	methodReadAll     = "ReadAll"
	methodLeaderboard = "Leaderboard"
)

// CollectionTag is the tag every read of collection c is registered under.
func CollectionTag(c store.Collection) string {
	return "collection:" + string(c)
}

// CachedStore decorates a store with read-through caching of ReadAll and
// Leaderboard. Writes pass through and drop the reads they affect.
//
// Every cache key carries the generation of each tag it is registered
// under. Invalidating a tag bumps its generation before deleting keys, so a
// fetch that started before the write can only fill a key no later read
// will ask for.
type CachedStore struct {
	base          store.Store
	cache         cache.CacheService
	keySerializer cache.KeySerializer
	keyRegistry   *sync.Map // key -> []string tags
	generations   *sync.Map // tag -> *atomic.Uint64
	epoch         atomic.Uint64
	logger        *zap.Logger
}

// Option configures a CachedStore.
type Option func(*CachedStore)

// WithLogger sets the logger used for invalidation failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *CachedStore) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a CachedStore over base.
func New(base store.Store, cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...Option) *CachedStore {
	c := &CachedStore{
		base:          base,
		cache:         cacheService,
		keySerializer: keySerializer,
		keyRegistry:   &sync.Map{},
		generations:   &sync.Map{},
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadAll returns the collection, cached.
func (c *CachedStore) ReadAll(ctx context.Context, col store.Collection) ([]store.Record, error) {
	tags := readTags(ctx, CollectionTag(col))
	key := c.keySerializer.SerializeKey(methodReadAll, col, c.stamp(tags))
	c.trackKey(key, tags)
	records, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]store.Record, error) {
		return c.base.ReadAll(ctx, col)
	})
	if err != nil {
		return nil, err
	}
	return cloneRecords(records), nil
}

// Leaderboard returns the top fans, cached per topN.
func (c *CachedStore) Leaderboard(ctx context.Context, topN int) ([]store.Record, error) {
	tags := readTags(ctx, CollectionTag(store.Fans))
	key := c.keySerializer.SerializeKey(methodLeaderboard, topN, c.stamp(tags))
	c.trackKey(key, tags)
	records, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) ([]store.Record, error) {
		return c.base.Leaderboard(ctx, topN)
	})
	if err != nil {
		return nil, err
	}
	return cloneRecords(records), nil
}

// Append writes through and invalidates reads of the collection.
func (c *CachedStore) Append(ctx context.Context, col store.Collection, record store.Record) (string, error) {
	id, err := c.base.Append(ctx, col, record)
	if err == nil {
		c.InvalidateCollection(ctx, col)
	}
	return id, err
}

// Insert writes through and invalidates reads of the collection.
func (c *CachedStore) Insert(ctx context.Context, col store.Collection, record store.Record) (store.Record, error) {
	stored, err := c.base.Insert(ctx, col, record)
	if err == nil {
		c.InvalidateCollection(ctx, col)
	}
	return stored, err
}

// InvalidateCollection drops every cached read of col. It matches
// store.ChangeFunc so it can listen to writes made on the base repository.
func (c *CachedStore) InvalidateCollection(ctx context.Context, col store.Collection) {
	c.InvalidateTags(ctx, CollectionTag(col))
}

// InvalidateTags drops every cached read registered under any of tags.
func (c *CachedStore) InvalidateTags(ctx context.Context, tags ...string) {
	want := make(map[string]struct{}, len(tags))
	for _, t := range normalizeTags(tags) {
		want[t] = struct{}{}
	}
	if len(want) == 0 {
		return
	}
	for tag := range want {
		c.generation(tag).Add(1)
	}

	var keysToDelete []string
	c.keyRegistry.Range(func(k, v any) bool {
		for _, tag := range v.([]string) {
			if _, ok := want[tag]; ok {
				keysToDelete = append(keysToDelete, k.(string))
				break
			}
		}
		return true
	})
	c.deleteKeys(ctx, keysToDelete)
}

// Flush drops every cached read.
func (c *CachedStore) Flush(ctx context.Context) {
	c.epoch.Add(1)
	c.invalidateByPrefix(ctx, "")
}

// readTags merges tags with the ones attached to ctx.
func readTags(ctx context.Context, tags ...string) []string {
	return normalizeTags(append(tags, cacheTagsFromContext(ctx)...))
}

// trackKey registers a cache key with its tags for later invalidation.
// The key encodes its own tag set.
func (c *CachedStore) trackKey(key string, tags []string) {
	c.keyRegistry.Store(key, tags)
}

func (c *CachedStore) generation(tag string) *atomic.Uint64 {
	if v, ok := c.generations.Load(tag); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := c.generations.LoadOrStore(tag, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// stamp renders the current epoch and tag generations, e.g. "0|collection:fans=3".
func (c *CachedStore) stamp(tags []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(c.epoch.Load(), 10))
	for _, tag := range tags {
		b.WriteByte('|')
		b.WriteString(tag)
		b.WriteByte('=')
		b.WriteString(strconv.FormatUint(c.generation(tag).Load(), 10))
	}
	return b.String()
}

// invalidateByPrefix removes all cached keys that start with the given prefix.
func (c *CachedStore) invalidateByPrefix(ctx context.Context, prefix string) {
	var keysToDelete []string
	c.keyRegistry.Range(func(k, _ any) bool {
		if key := k.(string); strings.HasPrefix(key, prefix) {
			keysToDelete = append(keysToDelete, key)
		}
		return true
	})
	c.deleteKeys(ctx, keysToDelete)
}

func (c *CachedStore) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
		c.keyRegistry.Delete(key)
	}
}

// cloneRecords copies cached records so callers cannot mutate the cache.
func cloneRecords(records []store.Record) []store.Record {
	out := make([]store.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
