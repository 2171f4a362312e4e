package feeds

import (
	"context"
	"errors"
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// Metric names recorded by the source middleware.
const (
	MetricSourceLatency  = "source_latency_seconds"
	MetricSourceRequests = "source_requests_total"
	MetricCircuitState   = "source_circuit_state"
)

// metricsSource records latency and outcome of every fetch.
type metricsSource struct {
	wrapped
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records the latency and the
// status of every fetch, labelled by source.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next ports.ResultSource) ports.ResultSource {
		return &metricsSource{wrapped: wrapped{next}, collector: collector}
	}
}

// FetchDistrict executes the fetch while collecting metrics.
func (m *metricsSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	start := time.Now()
	result, err := m.next.FetchDistrict(ctx, districtID)

	if m.collector != nil {
		labels := map[string]string{
			"source": m.Name(),
			"status": FetchStatus(err),
		}
		m.collector.RecordHistogram(MetricSourceLatency, time.Since(start).Seconds(), labels)
		m.collector.RecordCounter(MetricSourceRequests, 1, labels)
	}

	return result, err
}

// FetchStatus classifies a fetch error into a low-cardinality label.
func FetchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ports.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, domain.ErrUnknownDistrict):
		return "not_found"
	case errors.Is(err, ports.ErrInvalidResponse), errors.Is(err, domain.ErrInvalidDistrictResult):
		return "invalid"
	default:
		return "error"
	}
}
