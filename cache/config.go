package cache

import (
	"time"

	"github.com/goliatone/go-offline-store/internal/cacheinfra"
)

// Config holds the sturdyc settings of a cache service.
type Config = cacheinfra.Config

// EarlyRefreshConfig sets when cached reads are refreshed ahead of expiry.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// Early refresh windows of the store read cache, as divisors of the TTL.
// Background refreshes start between ttl/6 and ttl/3; a read older than
// 2/3 of the TTL refreshes before it returns.
const (
	asyncRefreshMinDivisor = 6
	asyncRefreshMaxDivisor = 3
)

// DefaultConfig returns the store read cache settings for the default TTL.
func DefaultConfig() Config {
	return ReadCacheConfig(cacheinfra.DefaultConfig().TTL)
}

// ReadCacheConfig returns the store read cache settings for ttl, with the
// refresh windows scaled to it. A non-positive ttl is kept so Validate can
// reject it.
func ReadCacheConfig(ttl time.Duration) Config {
	cfg := cacheinfra.DefaultConfig()
	cfg.TTL = ttl
	if ttl <= 0 {
		return cfg
	}
	cfg.EarlyRefresh = &EarlyRefreshConfig{
		MinAsyncRefreshTime: ttl / asyncRefreshMinDivisor,
		MaxAsyncRefreshTime: ttl / asyncRefreshMaxDivisor,
		SyncRefreshTime:     ttl * 2 / 3,
		RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
	}
	return cfg
}

// NewCacheService validates cfg and builds the sturdyc-backed service.
func NewCacheService(cfg Config) (CacheService, error) {
	svc, err := cacheinfra.NewSturdycService(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
