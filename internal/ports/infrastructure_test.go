package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

// Test that our interfaces can be implemented correctly

// mockSource implements ResultSource interface
type mockSource struct{ results map[string]domain.DistrictResult }

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	r, ok := m.results[districtID]
	if !ok {
		return domain.DistrictResult{}, NewSourceError(m.Name(), districtID, ErrNotFound)
	}
	return r.Clone(), nil
}

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  []time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// newMockMetricsCollector creates a new mock metrics collector for testing.
func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		latencies:  []time.Duration{},
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies = append(m.latencies, duration)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

func TestResultSource_Fetch(t *testing.T) {
	var _ ResultSource = (*mockSource)(nil)

	src := &mockSource{results: map[string]domain.DistrictResult{
		"6010": domain.Empty("6010", 5),
	}}

	got, err := src.FetchDistrict(context.Background(), "6010")
	require.NoError(t, err, "FetchDistrict() should not return error")
	assert.Equal(t, 5, got.Seats, "FetchDistrict() seats mismatch")

	_, err = src.FetchDistrict(context.Background(), "6099")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsRetryable(err), "missing districts are permanent failures")
}

func TestMetricsCollector_Recording(t *testing.T) {
	var _ MetricsCollector = (*mockMetricsCollector)(nil)

	metrics := newMockMetricsCollector()
	labels := map[string]string{"district": "6010"}

	// Test RecordLatency
	metrics.RecordLatency("allocate", 100*time.Millisecond, labels)
	assert.Len(t, metrics.latencies, 1, "RecordLatency() should record one duration")
	assert.Equal(t, 100*time.Millisecond, metrics.latencies[0], "RecordLatency() duration mismatch")

	// Test RecordCounter
	metrics.RecordCounter("district_outcomes_total", 1, labels)
	metrics.RecordCounter("district_outcomes_total", 2, labels)
	assert.Equal(t, float64(3), metrics.counters["district_outcomes_total"], "RecordCounter() sum mismatch")

	// Test RecordGauge
	metrics.RecordGauge("pact_seats", 10, labels)
	metrics.RecordGauge("pact_seats", 5, labels)
	assert.Equal(t, float64(5), metrics.gauges["pact_seats"], "RecordGauge() value mismatch")

	// Test RecordHistogram
	metrics.RecordHistogram("district_candidates", 12, labels)
	metrics.RecordHistogram("district_candidates", 30, labels)
	assert.Len(t, metrics.histograms["district_candidates"], 2, "RecordHistogram() should record two values")
}
