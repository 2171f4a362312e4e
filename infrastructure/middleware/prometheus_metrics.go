// Package middleware provides cross-cutting concerns for the electoral
// monitor: the Prometheus metrics collector.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mub05-dev/monitor-electoral/infrastructure/feeds"
	"github.com/mub05-dev/monitor-electoral/internal/application"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// Namespace prefixes every metric exported by the monitor.
const Namespace = "monitor"

// OperationHTTPRequest is the latency operation recorded per HTTP request.
const OperationHTTPRequest = "http_request"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks allocation and national run latency, district
// outcomes, source health and the seats awarded per pact.
type PrometheusMetrics struct {
	allocationLatency *prometheus.HistogramVec
	nationalLatency   *prometheus.HistogramVec
	httpLatency       *prometheus.HistogramVec
	districtOutcomes  *prometheus.CounterVec
	sourceRequests    *prometheus.CounterVec
	sourceLatency     *prometheus.HistogramVec
	circuitState      *prometheus.GaugeVec
	pactSeats         *prometheus.GaugeVec

	// General metrics for names without a dedicated vector.
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all of its metrics with reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		allocationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "allocation_duration_seconds",
				Help:      "Time spent allocating the seats of one district.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"district"},
		),
		nationalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "national_run_duration_seconds",
				Help:      "Duration of a national aggregation run, fetches included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scenario"},
		),
		httpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests by route and status code.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
		districtOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "district_outcomes_total",
				Help:      "Districts reduced into national runs, by status.",
			},
			[]string{"status"},
		),
		sourceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "source_requests_total",
				Help:      "District fetches by source and outcome.",
			},
			[]string{"source", "status"},
		),
		sourceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "source_latency_seconds",
				Help:      "District fetch latency by source and outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source", "status"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "source_circuit_state",
				Help:      "Circuit breaker state per source: 0 closed, 1 open, 2 half open.",
			},
			[]string{"source"},
		),
		pactSeats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "pact_seats",
				Help:      "Seats won by each pact in the latest national run.",
			},
			[]string{"pact", "scenario"},
		),

		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of other monitored operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Count of other monitored operations.",
			},
			[]string{"operation"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "system_state",
				Help:      "Other gauges reported by the monitor.",
			},
			[]string{"metric"},
		),
	}
}

// label returns the value of key, or "unknown" when it is missing or empty.
func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	switch operation {
	case application.MetricAllocate:
		pm.allocationLatency.WithLabelValues(label(labels, "district")).Observe(duration.Seconds())
	case application.MetricNationalRun:
		// The empty scenario is the baseline run.
		scenario := labels["scenario"]
		if scenario == "" {
			scenario = "none"
		}
		pm.nationalLatency.WithLabelValues(scenario).Observe(duration.Seconds())
	case OperationHTTPRequest:
		pm.httpLatency.WithLabelValues(label(labels, "route"), label(labels, "code")).Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case application.MetricDistrictOutcomes:
		pm.districtOutcomes.WithLabelValues(label(labels, "status")).Add(value)
	case feeds.MetricSourceRequests:
		pm.sourceRequests.WithLabelValues(label(labels, "source"), label(labels, "status")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case feeds.MetricCircuitState:
		pm.circuitState.WithLabelValues(label(labels, "source")).Set(value)
	case application.MetricPactSeats:
		scenario := labels["scenario"]
		if scenario == "" {
			scenario = "none"
		}
		pm.pactSeats.WithLabelValues(label(labels, "pact"), scenario).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case feeds.MetricSourceLatency:
		pm.sourceLatency.WithLabelValues(label(labels, "source"), label(labels, "status")).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
