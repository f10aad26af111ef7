// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📈 统计接口
// =============================================================================

// Recorder receives named statistics. Recording never fails and never
// blocks the caller.
type Recorder interface {
	Record(name string, value float64)
}

// NopRecorder discards every statistic.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(string, float64) {}

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 周期指标
	cyclesTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	stats         *prometheus.GaugeVec

	// 调度指标
	requestsClaimed *prometheus.CounterVec
	requestsExpired *prometheus.CounterVec
	openRequests    *prometheus.GaugeVec
	taskOutcomes    *prometheus.CounterVec
	spawnAttempts   *prometheus.CounterVec

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建注册到默认 Registry 的指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry 创建注册到指定 Registerer 的指标收集器
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 周期指标
	c.cyclesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of scheduler cycles",
		},
		[]string{"status"},
	)

	c.cycleDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Scheduler cycle duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	c.stats = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stat",
			Help:      "Last recorded value of a named statistic",
		},
		[]string{"name"},
	)

	// 调度指标
	c.requestsClaimed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_claimed_total",
			Help:      "Total number of requests matched to a worker",
		},
		[]string{"region"},
	)

	c.requestsExpired = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_purged_total",
			Help:      "Total number of requests removed as completed or expired",
		},
		[]string{"region"},
	)

	c.openRequests = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_requests",
			Help:      "Requests still waiting for a worker at the end of a cycle",
		},
		[]string{"region"},
	)

	c.taskOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_steps_total",
			Help:      "Total number of task steps by result",
		},
		[]string{"result"},
	)

	c.spawnAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_attempts_total",
			Help:      "Total number of worker creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 数据库指标
	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Record implements Recorder.
func (c *Collector) Record(name string, value float64) {
	c.stats.WithLabelValues(name).Set(value)
}

// =============================================================================
// 🔁 周期指标记录
// =============================================================================

// RecordCycle 记录一次调度周期
func (c *Collector) RecordCycle(status string, duration time.Duration) {
	c.cyclesTotal.WithLabelValues(status).Inc()
	c.cycleDuration.Observe(duration.Seconds())
}

// RecordRegion 记录单个区域的认领、清理和剩余请求数
func (c *Collector) RecordRegion(region string, claimed, purged, open int) {
	c.requestsClaimed.WithLabelValues(region).Add(float64(claimed))
	c.requestsExpired.WithLabelValues(region).Add(float64(purged))
	c.openRequests.WithLabelValues(region).Set(float64(open))
}

// RecordTaskStep 记录任务步进结果
func (c *Collector) RecordTaskStep(result string, n int) {
	c.taskOutcomes.WithLabelValues(result).Add(float64(n))
}

// RecordSpawn 记录孵化尝试结果
func (c *Collector) RecordSpawn(outcome string, n int) {
	c.spawnAttempts.WithLabelValues(outcome).Add(float64(n))
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
