// Package config loads fanzone settings from defaults, an optional YAML file
// and FANZONE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/goliatone/go-offline-store/offline"
	"github.com/goliatone/go-offline-store/store"
)

// EnvPrefix is prepended to every environment override, e.g.
// FANZONE_STORE_BACKEND.
const EnvPrefix = "FANZONE"

// Backend and source names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	SyncSourceNone  = "none"
	SyncSourceStore = "store"
)

// Config stores all the configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    LogConfig    `mapstructure:"log"`
	Sync   SyncConfig   `mapstructure:"sync"`
}

// ServerConfig stores the HTTP front settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Origin is the public site the offline controller fronts.
	Origin string `mapstructure:"origin"`
	// Upstream is where cache misses are fetched from. Empty means Origin.
	Upstream string `mapstructure:"upstream"`
	Metrics  bool   `mapstructure:"metrics"`
}

// StoreConfig selects and configures the record backend.
type StoreConfig struct {
	Backend         string        `mapstructure:"backend"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	Redis           RedisConfig   `mapstructure:"redis"`
	LeaderboardSize int           `mapstructure:"leaderboard_size"`
	ReadCache       bool          `mapstructure:"read_cache"`
	ReadCacheTTL    time.Duration `mapstructure:"read_cache_ttl"`
}

// RedisConfig stores the redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CacheConfig describes the offline cache version and its storage.
type CacheConfig struct {
	StaticName         string   `mapstructure:"static_name"`
	DynamicName        string   `mapstructure:"dynamic_name"`
	Manifest           []string `mapstructure:"manifest"`
	OfflinePage        string   `mapstructure:"offline_page"`
	ExcludePatterns    []string `mapstructure:"exclude_patterns"`
	TournamentDataURLs []string `mapstructure:"tournament_data_urls"`
	// DynamicCapacity bounds the dynamic partition. Zero means unbounded.
	DynamicCapacity int    `mapstructure:"dynamic_capacity"`
	Storage         string `mapstructure:"storage"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	ManualActivate  bool   `mapstructure:"manual_activate"`
}

// LogConfig stores the logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SyncConfig selects where background sync reads pending items.
type SyncConfig struct {
	Source string `mapstructure:"source"`
}

func setDefaults(v *viper.Viper) {
	defaults := offline.DefaultConfig("http://localhost:8080")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.origin", defaults.Origin)
	v.SetDefault("server.upstream", "")
	v.SetDefault("server.metrics", true)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.sqlite_path", "fanzone.db")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "fanzone:")
	v.SetDefault("store.leaderboard_size", store.DefaultLeaderboardSize)
	v.SetDefault("store.read_cache", true)
	v.SetDefault("store.read_cache_ttl", 30*time.Second)

	v.SetDefault("cache.static_name", defaults.StaticName)
	v.SetDefault("cache.dynamic_name", defaults.DynamicName)
	v.SetDefault("cache.manifest", defaults.Manifest)
	v.SetDefault("cache.offline_page", defaults.OfflinePage)
	v.SetDefault("cache.exclude_patterns", defaults.ExcludePatterns)
	v.SetDefault("cache.tournament_data_urls", []string{})
	v.SetDefault("cache.dynamic_capacity", 0)
	v.SetDefault("cache.storage", BackendMemory)
	v.SetDefault("cache.sqlite_path", "fanzone-offline.db")
	v.SetDefault("cache.manual_activate", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("sync.source", SyncSourceStore)
}

// LoadOption adjusts the defaults Load starts from.
type LoadOption func(*viper.Viper)

// WithDefault replaces the default of key. Files and the environment still
// override it.
func WithDefault(key string, value any) LoadOption {
	return func(v *viper.Viper) {
		v.SetDefault(key, value)
	}
}

// CLIDefaults keeps records and the offline cache on disk, so separate
// fanzone invocations see each other's writes.
func CLIDefaults() []LoadOption {
	return []LoadOption{
		WithDefault("store.backend", BackendSQLite),
		WithDefault("cache.storage", BackendSQLite),
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply. The library defaults keep everything
// in memory; pass CLIDefaults for a persistent setup.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for _, opt := range opts {
		opt(v)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults only, ignoring the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &cfg
}

// Validate checks every section.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Store),
		validation.Field(&c.Cache),
		validation.Field(&c.Log),
		validation.Field(&c.Sync),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.Origin, validation.Required, validation.By(absoluteURL)),
		validation.Field(&s.Upstream, validation.By(absoluteURL)),
	)
}

func (s StoreConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In(BackendMemory, BackendSQLite, BackendRedis)),
		validation.Field(&s.SQLitePath, validation.When(s.Backend == BackendSQLite, validation.Required)),
		validation.Field(&s.Redis, validation.Skip.When(s.Backend != BackendRedis)),
		validation.Field(&s.LeaderboardSize, validation.Min(1)),
		validation.Field(&s.ReadCacheTTL, validation.When(s.ReadCache, validation.Required)),
	)
}

func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Addr, validation.Required),
		validation.Field(&r.DB, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.StaticName, validation.Required),
		validation.Field(&c.DynamicName, validation.Required, validation.NotIn(c.StaticName).Error("must differ from static_name")),
		validation.Field(&c.OfflinePage, validation.Required),
		validation.Field(&c.DynamicCapacity, validation.Min(0)),
		validation.Field(&c.Storage, validation.Required, validation.In(BackendMemory, BackendSQLite)),
		validation.Field(&c.SQLitePath, validation.When(c.Storage == BackendSQLite, validation.Required)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error", "dpanic", "panic", "fatal")),
	)
}

func (s SyncConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Source, validation.Required, validation.In(SyncSourceNone, SyncSourceStore)),
	)
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// Offline converts the cache section into the controller configuration.
func (c Config) Offline() offline.Config {
	return offline.Config{
		Origin:             c.Server.Origin,
		StaticName:         c.Cache.StaticName,
		DynamicName:        c.Cache.DynamicName,
		Manifest:           append([]string(nil), c.Cache.Manifest...),
		OfflinePage:        c.Cache.OfflinePage,
		ExcludePatterns:    append([]string(nil), c.Cache.ExcludePatterns...),
		TournamentDataURLs: append([]string(nil), c.Cache.TournamentDataURLs...),
	}
}

// UpstreamURL returns the URL misses are fetched from.
func (c Config) UpstreamURL() string {
	if c.Server.Upstream != "" {
		return c.Server.Upstream
	}
	return c.Server.Origin
}
