package server

import (
	"net/http"
	"net/url"
	"strings"
)

// UpstreamTransport sends requests for origin to upstream instead. Other
// hosts pass through untouched. It lets the controller key entries by public
// URL while fetching from a private backend.
type UpstreamTransport struct {
	Base     http.RoundTripper
	Origin   *url.URL
	Upstream *url.URL
}

func (t *UpstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Origin == nil || t.Upstream == nil ||
		!strings.EqualFold(req.URL.Host, t.Origin.Host) ||
		!strings.EqualFold(req.URL.Scheme, t.Origin.Scheme) {
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.URL.Scheme = t.Upstream.Scheme
	out.URL.Host = t.Upstream.Host
	out.Host = t.Origin.Host

	resp, err := base.RoundTrip(out)
	if resp != nil {
		resp.Request = req
	}
	return resp, err
}
