package kvinfra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-offline-store/store"
)

var _ store.Backend = (*RedisBackend)(nil)

// RedisConfig configures a RedisBackend.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string
	MaxRetries int
}

// RedisBackend keeps slots as plain redis strings. Update uses WATCH/MULTI
// and retries when another writer touched the key first.
type RedisBackend struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("kvinfra: connect redis: %w", err)
	}

	return NewRedisBackend(client, cfg.Prefix, cfg.MaxRetries), nil
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, prefix string, maxRetries int) *RedisBackend {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &RedisBackend{client: client, prefix: prefix, maxRetries: maxRetries}
}

func (b *RedisBackend) key(k string) string { return b.prefix + k }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvinfra: get %s: %w", key, err)
	}
	return v, true, nil
}

func (b *RedisBackend) Update(ctx context.Context, key string, fn store.UpdateFunc) error {
	k := b.key(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			current, exists = nil, false
		} else if err != nil {
			return err
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < b.maxRetries; i++ {
		err := b.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", store.ErrConflict, key)
}

func (b *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("kvinfra: scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, b.prefix))
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
