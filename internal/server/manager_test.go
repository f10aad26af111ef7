package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/swarmflow/config"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.ServerConfig{HTTPPort: 9100, ReadTimeout: 3 * time.Second})
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, DefaultConfig().WriteTimeout, cfg.WriteTimeout, "zero keeps the default")
	assert.Equal(t, DefaultConfig().ShutdownTimeout, cfg.ShutdownTimeout)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestManager_StartAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	m := NewManager(handler, testConfig(), zaptest.NewLogger(t))
	assert.False(t, m.IsRunning())

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	assert.True(t, m.IsRunning())

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
	assert.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
	assert.ErrorContains(t, m.Start(), "server is closed")
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.ErrorContains(t, m.Start(), "already started")
}

func TestManager_ListenError(t *testing.T) {
	first := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	assert.ErrorContains(t, second.Start(), "failed to listen")
}

func TestManager_RunStopsWithContext(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, m.IsRunning, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, m.IsRunning())
}

// =============================================================================
// Handler
// =============================================================================

func get(t *testing.T, h http.Handler, path string) *http.Response {
	t.Helper()
	srv := NewManager(h, testConfig(), zap.NewNop())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_Health(t *testing.T) {
	h := NewHandler(Routes{Version: "1.2.3"}, nil)
	resp := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"status":"healthy"`)
	assert.Contains(t, string(body), `"version":"1.2.3"`)
}

func TestHandler_ReadyReportsFailingCheck(t *testing.T) {
	h := NewHandler(Routes{Checks: []HealthCheck{
		CheckFunc{CheckName: "store", Fn: func(context.Context) error { return nil }},
		CheckFunc{CheckName: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }},
	}}, zaptest.NewLogger(t))

	resp := get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"unhealthy"`)
	assert.Contains(t, string(body), "connection refused")
}

func TestHandler_StatusAndMetrics(t *testing.T) {
	h := NewHandler(Routes{
		Status: func(context.Context) (any, error) {
			return map[string]int{"cycle": 42}, nil
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}, nil)

	resp := get(t, h, "/api/v1/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"cycle":42`)

	resp = get(t, h, "/metrics")
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "# metrics", string(body))
}

func TestHandler_UnconfiguredRoutes(t *testing.T) {
	h := NewHandler(Routes{}, nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/status").StatusCode)
}
