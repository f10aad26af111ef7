package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 📦 响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response{
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

// HealthCheck is one readiness probe.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthCheck.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// =============================================================================
// 🧭 路由
// =============================================================================

// Routes configures the handler.
type Routes struct {
	Version string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Checks run on /ready.
	Checks []HealthCheck
	// Status serves /api/v1/status when set.
	Status func(ctx context.Context) (any, error)
	// CheckTimeout bounds each readiness probe; defaults to 2s.
	CheckTimeout time.Duration
}

type handler struct {
	routes Routes
	logger *zap.Logger
}

// NewHandler builds the operational HTTP surface: /health, /ready,
// /version, /metrics and /api/v1/status.
func NewHandler(routes Routes, logger *zap.Logger) *http.ServeMux {
	if logger == nil {
		logger = zap.NewNop()
	}
	if routes.CheckTimeout <= 0 {
		routes.CheckTimeout = 2 * time.Second
	}
	h := &handler{routes: routes, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ready", h.ready)
	mux.HandleFunc("GET /version", h.version)
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}
	if routes.Status != nil {
		mux.HandleFunc("GET /api/v1/status", h.status)
	}
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.routes.Version,
	})
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.routes.Version,
		Checks:    make(map[string]CheckResult, len(h.routes.Checks)),
	}

	code := http.StatusOK
	for _, c := range h.routes.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.routes.CheckTimeout)
		start := time.Now()
		err := c.Check(ctx)
		cancel()

		res := CheckResult{Status: "pass", Latency: time.Since(start).String()}
		if err != nil {
			res.Status = "fail"
			res.Message = err.Error()
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			h.logger.Warn("readiness check failed", zap.String("check", c.Name()), zap.Error(err))
		}
		status.Checks[c.Name()] = res
	}
	WriteJSON(w, code, status)
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"version": h.routes.Version})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	data, err := h.routes.Status(r.Context())
	if err != nil {
		h.logger.Error("status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data, Timestamp: time.Now()})
}
