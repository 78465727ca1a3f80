package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/skybooking/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

func serve(t *testing.T, db Pinger, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "bootstrap_test_total", Help: "test"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	cfg := &config.Config{HTTP: config.HTTPConfig{Address: ":0"}, GRPC: config.GRPCConfig{Address: ":0"}}
	s := newServers(cfg, gin.New(), db, reg)

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := serve(t, stubPinger{}, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(t, stubPinger{err: errors.New("connection refused")}, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(t, stubPinger{}, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bootstrap_test_total 1")
}

func TestRunStopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{HTTP: config.HTTPConfig{Address: "127.0.0.1:0"}, GRPC: config.GRPCConfig{Address: "127.0.0.1:0"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, gin.New(), stubPinger{}, prometheus.NewRegistry()) }()
	cancel()

	assert.NoError(t, <-done)
}
