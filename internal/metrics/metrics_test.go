package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/customers", 200, 15*time.Millisecond)
	m.ObserveHTTP("GET", "/api/customers", 200, 5*time.Millisecond)
	m.ObserveUpstream("customers", "http_error", time.Millisecond)
	m.CacheHit("customers")
	m.CacheMiss("")
	m.SetSessions(3)
	m.SetPurchases(120)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/customers", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("customers", "http_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("customers", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("unknown", "miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.purchases))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.ObserveUpstream("x", "ok", time.Millisecond)
		m.CacheHit("x")
		m.SetSessions(1)
	})

	empty := New(nil)
	assert.NotPanics(t, func() {
		empty.CacheMiss("x")
		empty.SetPurchases(1)
	})
}
