package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollectorWithRegistry(nextTestNamespace(), reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.cyclesTotal)
	assert.NotNil(t, collector.stats)
	assert.NotNil(t, collector.httpRequestsTotal)
}

func TestCollector_ImplementsRecorder(t *testing.T) {
	var _ Recorder = (*Collector)(nil)
	var _ Recorder = NopRecorder{}

	NopRecorder{}.Record("anything", 1)
}

func TestCollector_Record(t *testing.T) {
	c, _ := newTestCollector(t)

	c.Record("claims", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.stats.WithLabelValues("claims")))

	// 统计值覆盖而非累加
	c.Record("claims", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stats.WithLabelValues("claims")))
}

func TestCollector_RecordCycle(t *testing.T) {
	c, reg := newTestCollector(t)

	c.RecordCycle("ok", 10*time.Millisecond)
	c.RecordCycle("ok", 20*time.Millisecond)
	c.RecordCycle("aborted", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cyclesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cyclesTotal.WithLabelValues("aborted")))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "two status series plus the histogram")
}

func TestCollector_RecordRegion(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordRegion("W1N1", 2, 1, 5)
	c.RecordRegion("W1N1", 1, 0, 4)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.requestsClaimed.WithLabelValues("W1N1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsExpired.WithLabelValues("W1N1")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.openRequests.WithLabelValues("W1N1")))
}

func TestCollector_RecordTaskAndSpawn(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordTaskStep("done", 2)
	c.RecordTaskStep("failed", 1)
	c.RecordSpawn("created", 1)
	c.RecordSpawn("busy", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.taskOutcomes.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.taskOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.spawnAttempts.WithLabelValues("created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.spawnAttempts.WithLabelValues("busy")))
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	ns := nextTestNamespace()
	c := NewCollectorWithRegistry(ns, prometheus.NewRegistry(), nil)

	c.RecordHTTPRequest("GET", "/health", 200, 5*time.Millisecond)
	c.RecordHTTPRequest("GET", "/health", 503, 5*time.Millisecond)

	expected := fmt.Sprintf(`
# HELP %[1]s_http_requests_total Total number of HTTP requests
# TYPE %[1]s_http_requests_total counter
%[1]s_http_requests_total{method="GET",path="/health",status="2xx"} 1
%[1]s_http_requests_total{method="GET",path="/health",status="5xx"} 1
`, ns)
	require.NoError(t, testutil.CollectAndCompare(c.httpRequestsTotal, strings.NewReader(expected)))
}

func TestCollector_RecordDBConnections(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordDBConnections("sqlite", 4, 2)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dbConnectionsIdle.WithLabelValues("sqlite")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}
