package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Controller.
type State int32

const (
	StateParsed State = iota
	StateInstalling
	StateWaiting
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// OfflineImageSVG is served to image requests when the network is unreachable.
const OfflineImageSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><text x="100" y="100" text-anchor="middle" dy="0.3em" font-family="Arial" font-size="14" fill="#666">Image Offline</text></svg>`

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithNotifier sets where push notifications go.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithManualActivation stops Install from requesting skip-waiting. The
// controller then stays waiting until a SKIP_WAITING message arrives.
func WithManualActivation() Option {
	return func(c *Controller) {
		c.manual = true
	}
}

// Controller intercepts requests for one cache version. It implements
// http.RoundTripper.
type Controller struct {
	cfg      Config
	origin   *url.URL
	storage  Storage
	network  http.RoundTripper
	logger   *zap.Logger
	observer Observer
	notifier Notifier
	now      func() time.Time
	manual   bool

	state       atomic.Int32
	skipWaiting atomic.Bool
	writes      sync.WaitGroup
}

// NewController validates cfg and returns a controller in the parsed state.
// network is the transport used for every request that is not answered from
// the cache.
func NewController(cfg Config, storage Storage, network http.RoundTripper, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, &ConfigError{Field: "Storage", Message: "cannot be nil"}
	}
	if network == nil {
		network = http.DefaultTransport
	}

	origin, _ := url.Parse(cfg.Origin)

	c := &Controller{
		cfg:      cfg,
		origin:   origin,
		storage:  storage,
		network:  network,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		notifier: NewLogNotifier(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("static", cfg.StaticName), zap.String("dynamic", cfg.DynamicName))
	return c, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// State returns the current lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logger.Debug("state change", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// SkipWaitingRequested reports whether the controller asked to be activated
// without waiting for older versions to go away.
func (c *Controller) SkipWaitingRequested() bool { return c.skipWaiting.Load() }

// RequestSkipWaiting marks the controller for immediate activation.
func (c *Controller) RequestSkipWaiting() { c.skipWaiting.Store(true) }

// Install pre-caches every manifest resource into the static partition.
// Resources are all fetched before anything is written: one failure fails the
// install, leaves the partition untouched and makes the controller redundant.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)
	c.logger.Info("installing", zap.Int("manifest", len(c.cfg.Manifest)))

	type fetched struct {
		key   string
		entry Entry
	}
	entries := make([]fetched, 0, len(c.cfg.Manifest))

	for _, raw := range c.cfg.Manifest {
		u, err := c.resolve(raw)
		if err != nil {
			return c.failInstall(&InstallError{URL: raw, Err: err})
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return c.failInstall(&InstallError{URL: raw, Err: err})
		}

		resp, err := c.network.RoundTrip(req)
		if err != nil {
			return c.failInstall(&InstallError{URL: u.String(), Err: err})
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return c.failInstall(&InstallError{URL: u.String(), Status: resp.StatusCode})
		}

		entry, err := EntryFromResponse(req, resp, c.now())
		resp.Body.Close()
		if err != nil {
			return c.failInstall(&InstallError{URL: u.String(), Err: err})
		}
		entries = append(entries, fetched{key: RequestKey(http.MethodGet, u), entry: entry})
	}

	static, err := c.storage.Open(ctx, c.cfg.StaticName)
	if err != nil {
		return c.failInstall(&InstallError{URL: c.cfg.StaticName, Err: err})
	}
	for _, f := range entries {
		if err := static.Put(ctx, f.key, f.entry); err != nil {
			return c.failInstall(&InstallError{URL: f.entry.URL, Err: err})
		}
	}

	c.logger.Info("static files cached", zap.Int("count", len(entries)))
	if !c.manual {
		c.RequestSkipWaiting()
	}
	c.setState(StateWaiting)
	return nil
}

func (c *Controller) failInstall(err *InstallError) error {
	c.logger.Error("install failed", zap.Error(err))
	c.setState(StateRedundant)
	return err
}

// Activate deletes every partition that does not belong to this version and
// returns the names it deleted.
func (c *Controller) Activate(ctx context.Context) ([]string, error) {
	names, err := c.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("offline: list partitions: %w", err)
	}

	var deleted []string
	for _, name := range names {
		if name == c.cfg.StaticName || name == c.cfg.DynamicName {
			continue
		}
		c.logger.Info("deleting old cache", zap.String("partition", name))
		ok, err := c.storage.Remove(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("offline: remove partition %s: %w", name, err)
		}
		if ok {
			deleted = append(deleted, name)
		}
	}

	c.setState(StateActive)
	c.logger.Info("activated", zap.Strings("deleted", deleted))
	return deleted, nil
}

// RoundTrip answers req from the cache when possible, otherwise from the
// network, storing successful same-origin responses for later.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	if !intercepts(req) {
		return c.network.RoundTrip(req)
	}

	ctx := req.Context()
	key := RequestKey(req.Method, req.URL)

	if entry, partition, ok := c.match(ctx, key); ok {
		c.observer.CacheHit(partition)
		c.logger.Debug("serving from cache", zap.String("url", entry.URL), zap.String("partition", partition))
		return entry.Response(req), nil
	}
	c.observer.CacheMiss()

	resp, err := c.network.RoundTrip(req)
	if err != nil {
		return c.fallback(req, err)
	}

	if !c.cacheable(req, resp) {
		return resp, nil
	}

	entry, err := EntryFromResponse(req, resp, c.now())
	if err != nil {
		return c.fallback(req, err)
	}
	c.storeAsync(key, entry)
	return resp, nil
}

// Wait blocks until pending dynamic cache writes are done.
func (c *Controller) Wait() {
	c.writes.Wait()
}

// Match looks a request up in the cache without touching the network.
func (c *Controller) Match(ctx context.Context, method string, u *url.URL) (Entry, bool) {
	entry, _, ok := c.match(ctx, RequestKey(method, u))
	return entry, ok
}

// partitions returns the lookup order: static first, then dynamic.
func (c *Controller) partitions() []string {
	return []string{c.cfg.StaticName, c.cfg.DynamicName}
}

func (c *Controller) match(ctx context.Context, key string) (Entry, string, bool) {
	for _, name := range c.partitions() {
		p, found, err := c.storage.Lookup(ctx, name)
		if err != nil {
			c.logger.Warn("lookup partition", zap.String("partition", name), zap.Error(err))
			continue
		}
		if !found {
			continue
		}
		entry, ok, err := p.Match(ctx, key)
		if err != nil {
			c.logger.Warn("cache lookup", zap.String("partition", name), zap.Error(err))
			continue
		}
		if ok {
			return entry, name, true
		}
	}
	return Entry{}, "", false
}

func (c *Controller) cacheable(req *http.Request, resp *http.Response) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if !strings.EqualFold(req.URL.Scheme, c.origin.Scheme) || !strings.EqualFold(req.URL.Host, c.origin.Host) {
		return false
	}
	return c.ShouldCacheDynamically(req.URL.String())
}

// ShouldCacheDynamically reports whether rawURL may be stored in the dynamic
// partition.
func (c *Controller) ShouldCacheDynamically(rawURL string) bool {
	for _, pattern := range c.cfg.ExcludePatterns {
		if pattern != "" && strings.Contains(rawURL, pattern) {
			return false
		}
	}
	return true
}

func (c *Controller) storeAsync(key string, entry Entry) {
	// a replaced version must not bring back partitions Activate removed
	if c.State() == StateRedundant {
		return
	}
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		if err := c.put(context.Background(), c.cfg.DynamicName, key, entry); err != nil {
			c.observer.CacheWriteFailed(c.cfg.DynamicName)
			c.logger.Error("error caching dynamic content", zap.String("url", entry.URL), zap.Error(err))
			return
		}
		c.logger.Debug("cached dynamic content", zap.String("url", entry.URL))
	}()
}

func (c *Controller) put(ctx context.Context, partition, key string, entry Entry) error {
	p, err := c.storage.Open(ctx, partition)
	if err != nil {
		return err
	}
	return p.Put(ctx, key, entry)
}

func (c *Controller) fallback(req *http.Request, cause error) (*http.Response, error) {
	c.observer.NetworkFailure()
	c.logger.Warn("network fetch failed", zap.String("url", req.URL.String()), zap.Error(cause))

	accept := req.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/html"):
		page, err := c.resolve(c.cfg.OfflinePage)
		if err == nil {
			if entry, _, ok := c.match(req.Context(), RequestKey(http.MethodGet, page)); ok {
				c.observer.Fallback("document")
				return entry.Response(req), nil
			}
		}
	case strings.Contains(accept, "image"):
		c.observer.Fallback("image")
		return placeholderResponse(req), nil
	}

	return nil, fmt.Errorf("offline: fetch %s: %w", req.URL, cause)
}

func (c *Controller) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return c.origin.ResolveReference(ref), nil
}

func intercepts(req *http.Request) bool {
	if req.Method != "" && req.Method != http.MethodGet {
		return false
	}
	if req.URL == nil {
		return false
	}
	scheme := strings.ToLower(req.URL.Scheme)
	return scheme == "http" || scheme == "https"
}

func placeholderResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"image/svg+xml"}},
		Body:          io.NopCloser(strings.NewReader(OfflineImageSVG)),
		ContentLength: int64(len(OfflineImageSVG)),
		Request:       req,
	}
}
