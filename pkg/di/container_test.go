package di

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-store/bgsync"
	"github.com/goliatone/go-offline-store/config"
	"github.com/goliatone/go-offline-store/internal/cacheinfra"
	"github.com/goliatone/go-offline-store/repositorycache"
	"github.com/goliatone/go-offline-store/store"
)

func newTestContainer(t *testing.T, cfg *config.Config, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	container, err := NewContainer(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { container.Close() })
	return container
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(context.Background(), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if container.Repository() == nil {
		t.Error("Container should have a repository")
	}
	if container.CacheService() == nil {
		t.Error("Container should have a read cache by default")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a key serializer")
	}
	if container.Storage() == nil || container.Registration() == nil {
		t.Error("Container should have offline storage and a registration")
	}
	if container.Metrics() == nil || container.Syncer() == nil {
		t.Error("Container should have metrics and a syncer")
	}
	if _, ok := container.Store().(*repositorycache.CachedStore); !ok {
		t.Errorf("Store() should be the cached store, got %T", container.Store())
	}
	if container.Config().Store.Backend != config.BackendMemory {
		t.Errorf("Expected memory backend, got %q", container.Config().Store.Backend)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "mongo"

	_, err := NewContainer(context.Background(), cfg, WithLogger(zap.NewNop()))
	if err == nil {
		t.Error("NewContainer() should fail with invalid config")
	}
}

func TestNewContainer_ReadCacheDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Store.ReadCache = false

	container := newTestContainer(t, cfg)

	if container.CacheService() != nil {
		t.Error("CacheService() should be nil when the read cache is disabled")
	}
	if container.Store() != store.Store(container.Repository()) {
		t.Error("Store() should be the repository when the read cache is disabled")
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container := newTestContainer(t, nil)

	if container.CacheService() != container.CacheService() {
		t.Error("CacheService() should return the same instance")
	}
	if container.Store() != container.Store() {
		t.Error("Store() should return the same instance")
	}
	if container.Registration() != container.Registration() {
		t.Error("Registration() should return the same instance")
	}
}

func TestReadCacheInvalidatedByRepositoryWrites(t *testing.T) {
	container := newTestContainer(t, nil)
	ctx := context.Background()

	fans, err := container.Store().ReadAll(ctx, store.Fans)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(fans) != 0 {
		t.Fatalf("Expected no fans, got %d", len(fans))
	}

	// written through the repository, not the cached store
	if _, err := container.Repository().RegisterFan(ctx, store.Record{
		"firstName": "Ada", "lastName": "Obi", "email": "ada@example.com", "state": "Enugu",
	}); err != nil {
		t.Fatalf("RegisterFan() failed: %v", err)
	}

	fans, err = container.Store().ReadAll(ctx, store.Fans)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(fans) != 1 {
		t.Errorf("Expected 1 fan after write, got %d", len(fans))
	}
}

func TestSQLiteBackendSurvivesRestart(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	first, err := NewContainer(ctx, cfg, WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	team, err := first.Repository().RegisterTeam(ctx, store.Record{
		"teamName": "Surulere Strikers", "captainName": "Tunde", "email": "captain@strikers.ng",
		"phone": "+2348012345678", "state": "Lagos",
	})
	if err != nil {
		t.Fatalf("RegisterTeam() failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	second := newTestContainer(t, cfg)
	teams, err := second.Store().ReadAll(ctx, store.Teams)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(teams) != 1 || teams[0].ID() != team.ID() {
		t.Errorf("Expected team %s after restart, got %v", team.ID(), teams)
	}
}

func TestBoundedDynamicPartition(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.DynamicCapacity = 8

	container := newTestContainer(t, cfg)

	p, err := container.Storage().Open(context.Background(), cfg.Cache.DynamicName)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, ok := p.(*cacheinfra.BoundedPartition); !ok {
		t.Errorf("Expected bounded dynamic partition, got %T", p)
	}

	static, err := container.Storage().Open(context.Background(), cfg.Cache.StaticName)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, ok := static.(*cacheinfra.BoundedPartition); ok {
		t.Error("Static partition should stay unbounded")
	}
}

func TestSQLiteOfflineStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Storage = config.BackendSQLite
	cfg.Cache.SQLitePath = filepath.Join(t.TempDir(), "offline.db")

	container := newTestContainer(t, cfg)

	if _, ok := container.Storage().(*cacheinfra.SQLiteStorage); !ok {
		t.Errorf("Expected SQLite storage, got %T", container.Storage())
	}
}

func TestSyncSourceNone(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.Source = config.SyncSourceNone

	container := newTestContainer(t, cfg)

	_, err := container.Syncer().Handle(context.Background(), bgsync.TagFanRegistration)
	if !errors.Is(err, bgsync.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
}

func TestManualActivation(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.ManualActivate = true

	container := newTestContainer(t, cfg)

	ctrl, err := container.NewController()
	if err != nil {
		t.Fatalf("NewController() failed: %v", err)
	}
	if ctrl.SkipWaitingRequested() {
		t.Error("Manual activation controller should not request skip waiting")
	}
}
