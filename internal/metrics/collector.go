// Package metrics exposes pool and replication counters to Prometheus.
//
// A Collector is registered on a caller-supplied registry so that tests and
// several matches in one process never collide on the default registerer.
// All methods are safe on a nil *Collector, which records nothing.
package metrics

import (
	"net/http"

	"github.com/l1jgo/arena/internal/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pool lifecycle and replication traffic.
type Collector struct {
	reg *prometheus.Registry

	handles       *prometheus.GaugeVec   // registry, category, state
	allocations   *prometheus.CounterVec // registry, category
	constructions *prometheus.CounterVec // registry, category
	releases      *prometheus.CounterVec // registry, category
	forwarded     *prometheus.CounterVec // registry
	dropped       *prometheus.CounterVec // registry
	broadcasts    *prometheus.CounterVec // type
	peers         prometheus.Gauge
}

// NewCollector registers the arena metrics on reg. A nil reg gets a fresh
// registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		handles: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_pool_handles",
			Help: "Pooled instances per category and activation state",
		}, []string{"registry", "category", "state"}),
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_pool_allocations_total",
			Help: "Authoritative allocations",
		}, []string{"registry", "category"}),
		constructions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_pool_constructions_total",
			Help: "Instances constructed by warm-up or lazy growth",
		}, []string{"registry", "category"}),
		releases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_pool_releases_total",
			Help: "Authoritative releases that changed state",
		}, []string{"registry", "category"}),
		forwarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_requests_forwarded_total",
			Help: "Pool requests forwarded to the host",
		}, []string{"registry"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_requests_dropped_total",
			Help: "Forwarded pool requests the host dropped",
		}, []string{"registry"}),
		broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_broadcasts_total",
			Help: "Replication messages broadcast by the host",
		}, []string{"type"}),
		peers: f.NewGauge(prometheus.GaugeOpts{
			Name: "arena_peers_joined",
			Help: "Peers that completed the join handshake",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Constructed implements pool.Observer.
func (c *Collector) Constructed(h *pool.Handle) {
	if c == nil {
		return
	}
	reg, cat := h.Kind.String(), string(h.Category)
	c.constructions.WithLabelValues(reg, cat).Inc()
	c.handles.WithLabelValues(reg, cat, pool.Available.String()).Inc()
}

// Allocated implements pool.Observer.
func (c *Collector) Allocated(h *pool.Handle) {
	if c == nil {
		return
	}
	reg, cat := h.Kind.String(), string(h.Category)
	c.allocations.WithLabelValues(reg, cat).Inc()
	c.handles.WithLabelValues(reg, cat, pool.Available.String()).Dec()
	c.handles.WithLabelValues(reg, cat, pool.InUse.String()).Inc()
}

// Released implements pool.Observer.
func (c *Collector) Released(h *pool.Handle) {
	if c == nil {
		return
	}
	reg, cat := h.Kind.String(), string(h.Category)
	c.releases.WithLabelValues(reg, cat).Inc()
	c.handles.WithLabelValues(reg, cat, pool.InUse.String()).Dec()
	c.handles.WithLabelValues(reg, cat, pool.Available.String()).Inc()
}

func (c *Collector) RequestForwarded(kind pool.Kind) {
	if c == nil {
		return
	}
	c.forwarded.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) RequestDropped(kind pool.Kind) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) Broadcasted(msgType string) {
	if c == nil {
		return
	}
	c.broadcasts.WithLabelValues(msgType).Inc()
}

// SetPeers records the number of joined peers.
func (c *Collector) SetPeers(n int) {
	if c == nil {
		return
	}
	c.peers.Set(float64(n))
}
