package testsupport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrOffline is returned by FakeNetwork while it is offline.
var ErrOffline = errors.New("testsupport: network offline")

// Route is a canned response served by FakeNetwork.
type Route struct {
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// FakeNetwork is an http.RoundTripper serving canned responses by absolute
// URL. Unknown URLs get 404. It records every request it sees.
type FakeNetwork struct {
	mu      sync.Mutex
	routes  map[string]Route
	failing map[string]error
	offline bool
	calls   []string
}

// NewFakeNetwork returns an online network with no routes.
func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{
		routes:  map[string]Route{},
		failing: map[string]error{},
	}
}

// Handle registers a response for url.
func (n *FakeNetwork) Handle(url string, route Route) *FakeNetwork {
	n.mu.Lock()
	defer n.mu.Unlock()
	if route.Status == 0 {
		route.Status = http.StatusOK
	}
	n.routes[url] = route
	return n
}

// HandleText registers a 200 response with the given content type and body.
func (n *FakeNetwork) HandleText(url, contentType, body string) *FakeNetwork {
	return n.Handle(url, Route{Status: http.StatusOK, ContentType: contentType, Body: body})
}

// Fail makes requests to url return err.
func (n *FakeNetwork) Fail(url string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[url] = err
}

// SetOffline toggles the whole network.
func (n *FakeNetwork) SetOffline(offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = offline
}

// Calls returns "METHOD url" for each request seen, in order.
func (n *FakeNetwork) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// CallCount returns how many times url was requested with any method.
func (n *FakeNetwork) CallCount(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, c := range n.calls {
		if strings.HasSuffix(c, " "+url) {
			count++
		}
	}
	return count
}

// RoundTrip implements http.RoundTripper.
func (n *FakeNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		io.Copy(io.Discard, req.Body)
		req.Body.Close()
	}

	u := *req.URL
	u.Fragment = ""
	url := u.String()

	n.mu.Lock()
	n.calls = append(n.calls, req.Method+" "+url)
	offline := n.offline
	failErr, failing := n.failing[url]
	route, ok := n.routes[url]
	n.mu.Unlock()

	if offline {
		return nil, fmt.Errorf("dial %s: %w", req.URL.Host, ErrOffline)
	}
	if failing {
		return nil, failErr
	}
	if !ok {
		route = Route{Status: http.StatusNotFound, ContentType: "text/plain", Body: "not found"}
	}

	header := http.Header{}
	if route.ContentType != "" {
		header.Set("Content-Type", route.ContentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(route.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", route.Status, http.StatusText(route.Status)),
		StatusCode:    route.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader([]byte(route.Body))),
		ContentLength: int64(len(route.Body)),
		Request:       req,
	}, nil
}

// NewRequest builds a request for url with an optional Accept header.
// It panics on a malformed url.
func NewRequest(method, url, accept string) *http.Request {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		panic(err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

// Clock is a settable time source for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
