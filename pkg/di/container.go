package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-store/bgsync"
	"github.com/goliatone/go-offline-store/cache"
	"github.com/goliatone/go-offline-store/config"
	"github.com/goliatone/go-offline-store/internal/cacheinfra"
	"github.com/goliatone/go-offline-store/internal/kvinfra"
	"github.com/goliatone/go-offline-store/internal/logging"
	"github.com/goliatone/go-offline-store/internal/server"
	"github.com/goliatone/go-offline-store/internal/telemetry"
	"github.com/goliatone/go-offline-store/offline"
	"github.com/goliatone/go-offline-store/repositorycache"
	"github.com/goliatone/go-offline-store/store"
)

// Shard layout of a bounded dynamic partition.
const (
	dynamicShards             = 4
	dynamicEvictionPercentage = 10
)

// Container wires the store, its read cache, the offline controller and the
// background syncer from one configuration. Components are built once and
// shared.
type Container struct {
	config *config.Config
	logger *zap.Logger

	backend       store.Backend
	repository    *store.Repository
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	cachedStore   *repositorycache.CachedStore

	network      http.RoundTripper
	storage      offline.Storage
	notifier     offline.Notifier
	registration *offline.Registration
	metrics      *telemetry.Metrics
	syncer       *bgsync.Syncer

	closers []io.Closer
}

// Option overrides a component the container would otherwise build.
type Option func(*Container)

// WithLogger sets the root logger instead of building one from the log
// section.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithBackend sets the record backend instead of opening the configured one.
func WithBackend(backend store.Backend) Option {
	return func(c *Container) {
		c.backend = backend
	}
}

// WithNetwork sets the transport used to reach the upstream site.
func WithNetwork(network http.RoundTripper) Option {
	return func(c *Container) {
		c.network = network
	}
}

// WithNotifier sets where notifications are delivered.
func WithNotifier(n offline.Notifier) Option {
	return func(c *Container) {
		c.notifier = n
	}
}

// WithStorage sets the offline cache storage instead of the configured one.
func WithStorage(s offline.Storage) Option {
	return func(c *Container) {
		c.storage = s
	}
}

// NewContainer builds every component described by cfg. Call Close to
// release the backends it opened.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	steps := []func(context.Context) error{
		c.initLogger,
		c.initStore,
		c.initReadCache,
		c.initOffline,
		c.initSyncer,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// NewContainerWithDefaults builds a container from the default configuration:
// memory store, memory offline cache, store-backed sync.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), opts...)
}

func (c *Container) initLogger(context.Context) error {
	if c.logger != nil {
		return nil
	}
	logger, err := logging.New(c.config.Log.Level)
	if err != nil {
		return fmt.Errorf("di: logger: %w", err)
	}
	c.logger = logger
	return nil
}

func (c *Container) initStore(ctx context.Context) error {
	if c.backend == nil {
		backend, err := openBackend(ctx, c.config.Store)
		if err != nil {
			return err
		}
		c.backend = backend
		c.closers = append(c.closers, backend)
	}

	c.repository = store.NewRepository(c.backend, store.WithLogger(logging.Named(c.logger, "store")))
	c.logger.Info("store ready", zap.String("backend", c.config.Store.Backend))
	return nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return kvinfra.OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		return kvinfra.OpenRedis(ctx, kvinfra.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	default:
		return store.NewMemoryBackend(), nil
	}
}

func (c *Container) initReadCache(context.Context) error {
	c.keySerializer = cache.NewDefaultKeySerializer()
	if !c.config.Store.ReadCache {
		return nil
	}

	svc, err := cache.NewCacheService(cache.ReadCacheConfig(c.config.Store.ReadCacheTTL))
	if err != nil {
		return fmt.Errorf("di: read cache: %w", err)
	}
	c.cacheService = svc
	c.cachedStore = NewCachedStore(c, c.repository)
	c.repository.OnChange(c.cachedStore.InvalidateCollection)
	return nil
}

func (c *Container) initOffline(ctx context.Context) error {
	origin, err := url.Parse(c.config.Server.Origin)
	if err != nil {
		return fmt.Errorf("di: origin: %w", err)
	}
	upstream, err := url.Parse(c.config.UpstreamURL())
	if err != nil {
		return fmt.Errorf("di: upstream: %w", err)
	}

	base := c.network
	if base == nil {
		base = http.DefaultTransport
	}
	c.network = &server.UpstreamTransport{Base: base, Origin: origin, Upstream: upstream}

	if c.storage == nil {
		storage, err := openStorage(ctx, c.config.Cache)
		if err != nil {
			return err
		}
		c.storage = storage
		if closer, ok := storage.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}

	if c.notifier == nil {
		c.notifier = offline.NewLogNotifier(logging.Named(c.logger, "notify"))
	}

	c.metrics = telemetry.New()
	c.registration = offline.NewRegistration(c.network, logging.Named(c.logger, "registration"))
	return nil
}

func openStorage(ctx context.Context, cfg config.CacheConfig) (offline.Storage, error) {
	if cfg.Storage == config.BackendSQLite {
		return cacheinfra.OpenSQLiteStorage(ctx, cfg.SQLitePath)
	}

	var opts []offline.MemoryStorageOption
	if cfg.DynamicCapacity > 0 {
		shards := dynamicShards
		if cfg.DynamicCapacity < shards {
			shards = 1
		}
		opts = append(opts, offline.WithNamedPartitionFactory(
			cfg.DynamicName,
			cacheinfra.BoundedPartitionFactory(cfg.DynamicCapacity, shards, dynamicEvictionPercentage),
		))
	}
	return offline.NewMemoryStorage(opts...), nil
}

func (c *Container) initSyncer(context.Context) error {
	var source bgsync.Source = bgsync.UnimplementedSource{}
	if c.config.Sync.Source == config.SyncSourceStore {
		source = bgsync.NewStoreSource(c.repository)
	}
	c.syncer = bgsync.NewSyncer(source, c.notifier, bgsync.WithLogger(logging.Named(c.logger, "sync")))
	return nil
}

// NewController builds a controller for the configured cache version. It is
// not installed; pass it to Registration().Register or call Install.
func (c *Container) NewController(opts ...offline.Option) (*offline.Controller, error) {
	base := []offline.Option{
		offline.WithLogger(logging.Named(c.logger, "offline")),
		offline.WithObserver(c.metrics),
		offline.WithNotifier(c.notifier),
	}
	if c.config.Cache.ManualActivate {
		base = append(base, offline.WithManualActivation())
	}
	return offline.NewController(c.config.Offline(), c.storage, c.network, append(base, opts...)...)
}

// Install builds a controller for the configured version and registers it.
func (c *Container) Install(ctx context.Context) (*offline.Controller, error) {
	ctrl, err := c.NewController()
	if err != nil {
		return nil, err
	}
	if err := c.registration.Register(ctx, ctrl); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// Server returns the HTTP front over the container components.
func (c *Container) Server() (*server.Server, error) {
	origin, err := url.Parse(c.config.Server.Origin)
	if err != nil {
		return nil, fmt.Errorf("di: origin: %w", err)
	}

	deps := server.Deps{
		Registration:    c.registration,
		Reads:           c.Store(),
		Repository:      c.repository,
		Syncer:          c.syncer,
		Origin:          origin,
		LeaderboardSize: c.config.Store.LeaderboardSize,
		Logger:          logging.Named(c.logger, "server"),
	}
	if c.config.Server.Metrics {
		deps.Metrics = c.metrics
	}
	return server.New(deps), nil
}

// Close releases the backends opened by the container and flushes the logger.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Repository returns the store repository. Writes go here.
func (c *Container) Repository() *store.Repository { return c.repository }

// Store returns the read surface: the cached store when the read cache is
// enabled, otherwise the repository.
func (c *Container) Store() store.Store {
	if c.cachedStore != nil {
		return c.cachedStore
	}
	return c.repository
}

// CacheService returns the read cache, or nil when it is disabled.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

// KeySerializer returns the key serializer used for read cache keys.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// Storage returns the offline cache storage.
func (c *Container) Storage() offline.Storage { return c.storage }

// Registration returns the controller registration.
func (c *Container) Registration() *offline.Registration { return c.registration }

// Metrics returns the metrics registry wrapper.
func (c *Container) Metrics() *telemetry.Metrics { return c.metrics }

// Syncer returns the background sync handler.
func (c *Container) Syncer() *bgsync.Syncer { return c.syncer }

// NewCachedStore wraps base with the container read cache. The container
// must have the read cache enabled.
func NewCachedStore(container *Container, base store.Store) *repositorycache.CachedStore {
	return repositorycache.New(base, container.cacheService, container.keySerializer,
		repositorycache.WithLogger(logging.Named(container.logger, "readcache")))
}
