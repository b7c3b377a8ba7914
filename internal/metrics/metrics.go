package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dashboard's collectors. A nil *Metrics, or one built
// without a registerer, records nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	sessions         prometheus.Gauge
	purchases        prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_upstream_requests_total",
			Help: "Calls to the upstream API, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_upstream_request_duration_seconds",
			Help:    "Upstream API latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_cache_lookups_total",
			Help: "Response cache lookups, by query and result.",
		}, []string{"query", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_sessions_active",
			Help: "Open dashboard sessions.",
		}),
		purchases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_purchases_loaded",
			Help: "Purchase records held by the store.",
		}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.upstreamRequests, m.upstreamDuration,
		m.cacheLookups, m.sessions, m.purchases,
	)
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUpstream records one upstream call. outcome is "ok", "http_error"
// or "transport_error".
func (m *Metrics) ObserveUpstream(endpoint, outcome string, d time.Duration) {
	if m == nil || m.upstreamRequests == nil {
		return
	}
	endpoint = normalizeLabel(endpoint)
	m.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	m.upstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) CacheHit(query string) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	m.cacheLookups.WithLabelValues(normalizeLabel(query), "hit").Inc()
}

func (m *Metrics) CacheMiss(query string) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	m.cacheLookups.WithLabelValues(normalizeLabel(query), "miss").Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) SetPurchases(n int) {
	if m == nil || m.purchases == nil {
		return
	}
	m.purchases.Set(float64(n))
}

func normalizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
