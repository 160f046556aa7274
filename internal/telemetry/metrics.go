// Package telemetry exposes prometheus counters for the offline cache and
// background sync.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-offline-store/bgsync"
	"github.com/goliatone/go-offline-store/offline"
)

const namespace = "fanzone"

var _ offline.Observer = (*Metrics)(nil)

// Metrics owns a registry and the counters fed by the controller and syncer.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    prometheus.Counter
	networkFails   prometheus.Counter
	fallbacks      *prometheus.CounterVec
	cacheWriteFail *prometheus.CounterVec
	syncItems      *prometheus.CounterVec
}

// New registers the counters on a fresh registry, plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "cache_hits_total",
			Help:      "Requests answered from a cache partition",
		}, []string{"partition"}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "cache_misses_total",
			Help:      "Requests that went to the network",
		}),
		networkFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "network_failures_total",
			Help:      "Network fetches that failed",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "fallbacks_total",
			Help:      "Offline fallbacks served by kind",
		}, []string{"kind"}),
		cacheWriteFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "cache_write_failures_total",
			Help:      "Failed writes into a cache partition",
		}, []string{"partition"}),
		syncItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Background sync items by tag and outcome",
		}, []string{"tag", "outcome"}),
	}

	m.registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.networkFails,
		m.fallbacks,
		m.cacheWriteFail,
		m.syncItems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CacheHit(partition string) { m.cacheHits.WithLabelValues(partition).Inc() }
func (m *Metrics) CacheMiss()                { m.cacheMisses.Inc() }
func (m *Metrics) NetworkFailure()           { m.networkFails.Inc() }
func (m *Metrics) Fallback(kind string)      { m.fallbacks.WithLabelValues(kind).Inc() }

func (m *Metrics) CacheWriteFailed(partition string) {
	m.cacheWriteFail.WithLabelValues(partition).Inc()
}

// ObserveSync records the outcome of one sync run.
func (m *Metrics) ObserveSync(res bgsync.Result) {
	m.syncItems.WithLabelValues(res.Tag, "synced").Add(float64(res.Synced))
	m.syncItems.WithLabelValues(res.Tag, "failed").Add(float64(res.Failed))
}
