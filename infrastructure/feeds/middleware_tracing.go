package feeds

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// tracedSource wraps every fetch in a span.
type tracedSource struct {
	wrapped
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that records a "source.fetch" span
// per fetch using the global tracer provider.
func TracingMiddleware() Middleware {
	tracer := otel.Tracer("feeds")
	return func(next ports.ResultSource) ports.ResultSource {
		return &tracedSource{wrapped: wrapped{next}, tracer: tracer}
	}
}

// FetchDistrict executes the fetch within a span.
func (t *tracedSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	ctx, span := t.tracer.Start(ctx, "source.fetch",
		trace.WithAttributes(
			attribute.String("source.name", t.Name()),
			attribute.String("district.id", districtID),
		),
	)
	defer span.End()

	result, err := t.next.FetchDistrict(ctx, districtID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(
		attribute.Int("district.candidates", len(result.Candidates)),
		attribute.Int("district.seats", result.Seats),
	)
	return result, nil
}
