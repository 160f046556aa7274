package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// MessageSkipWaiting is the page message that force-activates a waiting controller.
const MessageSkipWaiting = "SKIP_WAITING"

// Message is a structured message posted from a page.
type Message struct {
	Type string `json:"type"`
}

// Registration tracks the active and waiting controllers for a site and
// routes requests to the active one.
type Registration struct {
	mu      sync.Mutex
	active  atomic.Pointer[Controller]
	waiting *Controller
	network http.RoundTripper
	logger  *zap.Logger
}

// NewRegistration returns a registration with no controller. Until one is
// active, requests go straight to network.
func NewRegistration(network http.RoundTripper, logger *zap.Logger) *Registration {
	if network == nil {
		network = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registration{network: network, logger: logger}
}

// Active returns the controller currently handling requests, or nil.
func (r *Registration) Active() *Controller { return r.active.Load() }

// Waiting returns the installed controller waiting for activation, or nil.
func (r *Registration) Waiting() *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Register installs c. A failed install leaves the current controller in
// place. A successful one activates straight away and takes over all traffic
// when nothing is active yet or c asked to skip waiting. Otherwise it waits.
func (r *Registration) Register(ctx context.Context, c *Controller) error {
	if err := c.Install(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if prev := r.waiting; prev != nil && prev != c {
		prev.setState(StateRedundant)
	}
	r.waiting = c
	r.mu.Unlock()

	if c.SkipWaitingRequested() || r.active.Load() == nil {
		return r.promote(ctx)
	}
	return nil
}

// SkipWaiting activates the waiting controller, if any.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	w := r.waiting
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	w.RequestSkipWaiting()
	return r.promote(ctx)
}

func (r *Registration) promote(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.waiting
	if w == nil {
		return nil
	}
	if _, err := w.Activate(ctx); err != nil {
		return err
	}

	// Claim: every subsequent request goes to w.
	prev := r.active.Swap(w)
	r.waiting = nil
	if prev != nil && prev != w {
		prev.setState(StateRedundant)
	}
	return nil
}

// HandleMessage processes a JSON message posted by a page.
func (r *Registration) HandleMessage(ctx context.Context, raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("offline: decode message: %w", err)
	}
	r.logger.Info("message received", zap.String("type", msg.Type))

	switch msg.Type {
	case MessageSkipWaiting:
		return r.SkipWaiting(ctx)
	default:
		return nil
	}
}

// RoundTrip sends req through the active controller.
func (r *Registration) RoundTrip(req *http.Request) (*http.Response, error) {
	if c := r.active.Load(); c != nil {
		return c.RoundTrip(req)
	}
	return r.network.RoundTrip(req)
}
