package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its own registry so tests can build independent instances
// without duplicate-registration panics.
type Metrics struct {
	registry         *prometheus.Registry
	extractRequests  *prometheus.CounterVec
	subprocessSpawns *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		extractRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imvid_extract_requests_total",
			Help: "Extraction requests by outcome.",
		}, []string{"outcome"}),
		subprocessSpawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imvid_subprocess_spawns_total",
			Help: "Subprocesses spawned by tool class.",
		}, []string{"class"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imvid_cache_events_total",
			Help: "Cache hits and misses by cache.",
		}, []string{"cache", "event"}),
	}
	reg.MustRegister(m.extractRequests, m.subprocessSpawns, m.cacheEvents)
	return m
}

// ObserveLimiter exports a limiter's live occupancy as a gauge.
func (m *Metrics) ObserveLimiter(class string, l *Limiter) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "imvid_limiter_in_use",
		Help:        "Subprocess slots currently held.",
		ConstLabels: prometheus.Labels{"class": class},
	}, func() float64 {
		return float64(l.InUse())
	}))
}

func (m *Metrics) ExtractRequest(outcome string) {
	m.extractRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SubprocessSpawn(class string) {
	m.subprocessSpawns.WithLabelValues(class).Inc()
}

func (m *Metrics) CacheEvent(cache, event string) {
	m.cacheEvents.WithLabelValues(cache, event).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
