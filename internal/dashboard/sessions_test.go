package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall-dashboard/internal/metrics"
	"mall-dashboard/internal/urlstate"
)

func newTestSessions(t *testing.T) (*Sessions, *time.Time, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := NewSessions(newFakeSource(3), Config{DefaultRange: july}, time.Minute, nil, m)
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, &now, reg
}

func activeSessions(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "dashboard_sessions_active" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("sessions gauge not registered")
	return 0
}

func TestSessions_OpenAndGet(t *testing.T) {
	s, _, _ := newTestSessions(t)

	sess := s.Open("/", "search=kim&page=2")
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, "kim", sess.Location.Param(urlstate.KeySearch, ""))
	assert.Equal(t, "2024-07-01", sess.Location.Param(urlstate.KeyFrom, ""), "default range is seeded")

	got, ok := s.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = s.Get("nope")
	assert.False(t, ok)

	other := s.Open("/", "")
	assert.NotEqual(t, sess.ID, other.ID)
	assert.Equal(t, 2, s.Len())
}

func TestSessions_SweepKeepsStreamingSessions(t *testing.T) {
	s, now, reg := newTestSessions(t)

	idle := s.Open("/", "")
	streaming := s.Open("/", "")
	_, release, ok := s.Acquire(streaming.ID)
	require.True(t, ok)

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep(*now))

	_, ok = s.Get(idle.ID)
	assert.False(t, ok)
	_, ok = s.Get(streaming.ID)
	assert.True(t, ok)
	assert.Equal(t, float64(1), activeSessions(t, reg))

	release()
	release()
	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep(*now))
	assert.Zero(t, s.Len())
}

func TestSessions_AcquireUnknown(t *testing.T) {
	s, _, _ := newTestSessions(t)
	_, _, ok := s.Acquire("missing")
	assert.False(t, ok)
}

func TestSessions_Close(t *testing.T) {
	s, _, reg := newTestSessions(t)
	sess := s.Open("/", "")

	require.NoError(t, s.Close(context.Background()))
	assert.Zero(t, s.Len())
	assert.Zero(t, activeSessions(t, reg))

	sess.Controller.SetSearchInput("x")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sess.Location.Param(urlstate.KeySearch, ""))
}
