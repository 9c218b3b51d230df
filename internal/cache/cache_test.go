package cache

import (
	"testing"
	"time"

	"github.com/2beens/planbuilder/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientInfo struct {
	ID      string `json:"id"`
	Weekday string `json:"weekday"`
}

func TestTTLCache_GetSetInvalidate(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	c := NewTTLCache("clients", 1, time.Minute, metricsManager)

	var got clientInfo
	assert.False(t, c.Get("c1", &got))

	require.NoError(t, c.Set("c1", clientInfo{ID: "c1", Weekday: "monday"}))
	require.True(t, c.Get("c1", &got))
	assert.Equal(t, "monday", got.Weekday)

	c.Invalidate("c1")
	assert.False(t, c.Get("c1", &got))

	require.NoError(t, c.Set("c2", clientInfo{ID: "c2"}))
	c.Clear()
	assert.False(t, c.Get("c2", &got))

	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterCacheLookups.WithLabelValues("clients", "hit")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metricsManager.CounterCacheLookups.WithLabelValues("clients", "miss")))
}

func TestTTLCache_Expires(t *testing.T) {
	c := NewTTLCache("clients", 1, time.Second, metrics.NewTestManager())
	require.NoError(t, c.Set("c1", clientInfo{ID: "c1"}))

	var got clientInfo
	require.True(t, c.Get("c1", &got))
	require.Eventually(t, func() bool {
		return !c.Get("c1", &got)
	}, 3*time.Second, 100*time.Millisecond)
}

func TestTTLCache_UndecodableValueIsDropped(t *testing.T) {
	c := NewTTLCache("clients", 1, time.Minute, metrics.NewTestManager())
	require.NoError(t, c.Set("c1", "just a string"))

	var got clientInfo
	assert.False(t, c.Get("c1", &got))
	var s string
	assert.False(t, c.Get("c1", &s))
}
