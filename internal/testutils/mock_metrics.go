package testutils

import (
	"sync"
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

var _ ports.MetricsCollector = (*MockMetrics)(nil)

// MockMetrics records every metric call in memory. It is safe for
// concurrent use.
type MockMetrics struct {
	mu         sync.Mutex
	Latencies  map[string][]time.Duration
	Counters   map[string]float64
	Gauges     map[string]float64
	Histograms map[string][]float64
	Labels     map[string][]map[string]string
}

// NewMockMetrics creates an empty MockMetrics.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Latencies:  make(map[string][]time.Duration),
		Counters:   make(map[string]float64),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Labels:     make(map[string][]map[string]string),
	}
}

func (m *MockMetrics) record(name string, labels map[string]string) {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	m.Labels[name] = append(m.Labels[name], cp)
}

// RecordLatency implements ports.MetricsCollector.
func (m *MockMetrics) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Latencies[operation] = append(m.Latencies[operation], d)
	m.record(operation, labels)
}

// RecordCounter implements ports.MetricsCollector.
func (m *MockMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[metric] += value
	m.record(metric, labels)
}

// RecordGauge implements ports.MetricsCollector.
func (m *MockMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[metric] = value
	m.record(metric, labels)
}

// RecordHistogram implements ports.MetricsCollector.
func (m *MockMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[metric] = append(m.Histograms[metric], value)
	m.record(metric, labels)
}

// Counter returns the accumulated value of a counter.
func (m *MockMetrics) Counter(metric string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[metric]
}

// LabelsFor returns copies of the label sets recorded for a metric.
func (m *MockMetrics) LabelsFor(metric string) []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]string(nil), m.Labels[metric]...)
}
