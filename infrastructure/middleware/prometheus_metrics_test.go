package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mub05-dev/monitor-electoral/infrastructure/feeds"
	"github.com/mub05-dev/monitor-electoral/internal/application"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// newTestMetrics registers the collector on a private registry so tests do
// not collide on metric names.
func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

// TestNewPrometheusMetrics verifies that every metric vector is initialized
// and that the collector satisfies the MetricsCollector port.
func TestNewPrometheusMetrics(t *testing.T) {
	pm, _ := newTestMetrics(t)

	assert.NotNil(t, pm.allocationLatency)
	assert.NotNil(t, pm.nationalLatency)
	assert.NotNil(t, pm.districtOutcomes)
	assert.NotNil(t, pm.sourceRequests)
	assert.NotNil(t, pm.circuitState)
	assert.NotNil(t, pm.pactSeats)

	var _ ports.MetricsCollector = pm
}

func TestNewPrometheusMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusMetrics(reg)

	assert.Panics(t, func() { NewPrometheusMetrics(reg) })
}

// TestPrometheusMetrics_RecordCounter tests that counters are routed to
// their dedicated vectors and that missing labels become "unknown".
func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter(application.MetricDistrictOutcomes, 1, map[string]string{"status": "ok"})
	pm.RecordCounter(application.MetricDistrictOutcomes, 2, map[string]string{"status": "ok"})
	pm.RecordCounter(application.MetricDistrictOutcomes, 1, map[string]string{"status": "degraded"})
	pm.RecordCounter(feeds.MetricSourceRequests, 1, map[string]string{"source": "live", "status": "timeout"})
	pm.RecordCounter(feeds.MetricSourceRequests, 1, map[string]string{})
	pm.RecordCounter("something_else", 4, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(pm.districtOutcomes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.districtOutcomes.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.sourceRequests.WithLabelValues("live", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.sourceRequests.WithLabelValues("unknown", "unknown")))
	assert.Equal(t, 4.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues("something_else")))
}

// TestPrometheusMetrics_RecordGauge tests circuit state and pact seat
// gauges, including the baseline scenario label.
func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordGauge(feeds.MetricCircuitState, 1, map[string]string{"source": "live"})
	pm.RecordGauge(application.MetricPactSeats, 10, map[string]string{"pact": "A"})
	pm.RecordGauge(application.MetricPactSeats, 12, map[string]string{"pact": "JK", "scenario": "derecha_unida"})
	pm.RecordGauge("uptime", 3, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.circuitState.WithLabelValues("live")))
	assert.Equal(t, 10.0, testutil.ToFloat64(pm.pactSeats.WithLabelValues("A", "none")))
	assert.Equal(t, 12.0, testutil.ToFloat64(pm.pactSeats.WithLabelValues("JK", "derecha_unida")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.systemGauges.WithLabelValues("uptime")))
}

// TestPrometheusMetrics_Histograms tests latency and histogram routing by
// counting the observed series.
func TestPrometheusMetrics_Histograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordLatency(application.MetricAllocate, time.Millisecond, map[string]string{"district": "6010"})
	pm.RecordLatency(application.MetricNationalRun, time.Second, map[string]string{})
	pm.RecordLatency(OperationHTTPRequest, 5*time.Millisecond, map[string]string{"route": "/national", "code": "200"})
	pm.RecordLatency("other", time.Millisecond, nil)
	pm.RecordHistogram(feeds.MetricSourceLatency, 0.25, map[string]string{"source": "file", "status": "success"})
	pm.RecordHistogram("misc", 1, nil)

	tests := []struct {
		name string
		want int
	}{
		{"monitor_allocation_duration_seconds", 1},
		{"monitor_national_run_duration_seconds", 1},
		{"monitor_http_request_duration_seconds", 1},
		{"monitor_source_latency_seconds", 1},
		{"monitor_operation_duration_seconds", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := testutil.GatherAndCount(reg, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}
