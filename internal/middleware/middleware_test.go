package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2beens/planbuilder/internal/telemetry/metrics"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLimiter struct {
	mutex   sync.Mutex
	allowed int
	calls   map[string]int
	err     error
}

func (l *fakeLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[key]++
	if l.calls[key] > l.allowed {
		return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 1500 * time.Millisecond}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: l.allowed - l.calls[key]}, nil
}

func TestRateLimit(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	limiter := &fakeLimiter{allowed: 2}
	handler := RateLimit(limiter, metricsManager, "api", 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remoteAddr string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/clients/c1/plan", nil)
		req.RemoteAddr = remoteAddr
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, call("83.12.53.65:1000").Code)
	assert.Equal(t, http.StatusOK, call("83.12.53.65:1001").Code)
	rr := call("83.12.53.65:1002")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))

	// another client has its own budget
	assert.Equal(t, http.StatusOK, call("91.1.2.3:1000").Code)

	assert.Equal(t, 3, limiter.calls["api:83.12.53.65"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterRateLimitedRequests))
}

func TestRateLimit_LimiterFailureLetsRequestsThrough(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	called := false
	handler := RateLimit(limiter, nil, "api", 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestMetrics(t *testing.T) {
	metricsManager := metrics.NewTestManager()

	r := mux.NewRouter()
	r.HandleFunc("/clients/{clientId}/plan", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}).Methods("GET").Name("plan-get")
	r.Use(RequestMetrics(metricsManager))

	for _, client := range []string{"c1", "c2", "c3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/clients/"+client+"/plan", nil))
		require.Equal(t, http.StatusConflict, rr.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(metricsManager.CounterRequests.WithLabelValues("GET", "409")))
	// one series per route, not per client
	assert.Equal(t, 1, testutil.CollectAndCount(metricsManager.HistogramRequestDuration))
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestDrainAndCloseRequest(t *testing.T) {
	for _, tc := range []struct {
		name     string
		body     string
		maxDrain int64
		leftover string
	}{
		{name: "small body drained", body: `{"force": true}`, maxDrain: 1024, leftover: ""},
		{name: "drain capped", body: `{"force": true}`, maxDrain: 4, leftover: `: true}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body := &trackingBody{Reader: strings.NewReader(tc.body)}
			req := httptest.NewRequest("POST", "/clients/c1/plan/approve", nil)
			req.Body = body

			handler := DrainAndCloseRequest(tc.maxDrain)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// handler reads only the first 4 bytes
				_, err := io.ReadFull(r.Body, make([]byte, 4))
				require.NoError(t, err)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, body.closed)
			rest, err := io.ReadAll(body.Reader)
			require.NoError(t, err)
			assert.Equal(t, tc.leftover, string(rest))
		})
	}
}

func TestLogRequest(t *testing.T) {
	hook := new(logtest.Hook)
	prevHooks := logrus.StandardLogger().ReplaceHooks(logrus.LevelHooks{})
	logrus.AddHook(hook)
	prevOut, prevLevel := logrus.StandardLogger().Out, logrus.GetLevel()
	logrus.SetOutput(io.Discard)
	logrus.SetLevel(logrus.TraceLevel)
	t.Cleanup(func() {
		logrus.SetOutput(prevOut)
		logrus.SetLevel(prevLevel)
		logrus.StandardLogger().ReplaceHooks(prevHooks)
	})

	r := mux.NewRouter()
	r.HandleFunc("/clients/{clientId}/plan/save", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}).Methods("POST").Name("plan-save")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {}).Name("health")
	r.Use(LogRequest())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/clients/c9/plan/save", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	entries := hook.AllEntries()
	require.Len(t, entries, 2)

	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "plan-save", entries[0].Data["route"])
	assert.Equal(t, http.StatusBadGateway, entries[0].Data["status"])
	assert.Equal(t, "c9", entries[0].Data["client_id"])

	assert.Equal(t, logrus.TraceLevel, entries[1].Level)
	assert.Equal(t, http.StatusOK, entries[1].Data["status"])
	assert.NotContains(t, entries[1].Data, "client_id")
}
