package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// Metric names recorded by the application layer.
const (
	MetricAllocate         = "allocate"
	MetricDistrictOutcomes = "district_outcomes_total"
	MetricPactSeats        = "pact_seats"
	MetricNationalRun      = "national_run"
)

// DistrictStatus reports how a district projection was produced.
type DistrictStatus string

const (
	// StatusOK means the district was fetched and allocated.
	StatusOK DistrictStatus = "ok"
	// StatusDegraded means the district could not be produced and an
	// empty district with its seat count stands in for it.
	StatusDegraded DistrictStatus = "degraded"
)

// DistrictProjection is the seat projection of one district under a
// scenario, together with the derived parity and phenomena reports.
type DistrictProjection struct {
	DistrictID string         `json:"districtId"`
	Seats      int            `json:"seats"`
	Scenario   string         `json:"scenario,omitempty"`
	Source     string         `json:"source,omitempty"`
	Status     DistrictStatus `json:"status"`
	Error      string         `json:"error,omitempty"`

	// Result is the district after the scenario merge.
	Result     domain.DistrictResult `json:"result"`
	Allocation domain.Allocation     `json:"allocation"`
	Parity     domain.DistrictParity `json:"parity"`
	Phenomena  domain.Phenomena      `json:"phenomena"`
}

// Option configures the services of this package.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics ports.MetricsCollector
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics collector. Metrics are skipped when unset.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(o *options) { o.metrics = metrics }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// DistrictService projects single districts: scenario merge, seat
// allocation, parity and phenomena. It holds only read-only configuration
// and is safe for concurrent use.
type DistrictService struct {
	allocator    domain.Allocator
	scenarios    domain.ScenarioSet
	parity       domain.ParityPolicy
	seats        map[string]int
	defaultSeats int
	options
	tracer trace.Tracer
}

// NewDistrictService builds a service from the election configuration.
func NewDistrictService(cfg *ElectionConfig, allocator domain.Allocator, opts ...Option) (*DistrictService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil election config", domain.ErrInvalidConfiguration)
	}
	if allocator == nil {
		return nil, errors.New("district service requires an allocator")
	}
	scenarios, err := cfg.ScenarioSet()
	if err != nil {
		return nil, err
	}

	return &DistrictService{
		allocator:    allocator,
		scenarios:    scenarios,
		parity:       cfg.ParityPolicy(),
		seats:        cfg.SeatTable(),
		defaultSeats: cfg.DefaultSeats,
		options:      buildOptions(opts),
		tracer:       otel.Tracer("application"),
	}, nil
}

// Scenarios returns the configured scenario catalogue.
func (s *DistrictService) Scenarios() domain.ScenarioSet { return s.scenarios }

// Seats returns the seat count of a district, falling back to the default
// for ids missing from the seat table.
func (s *DistrictService) Seats(districtID string) int {
	if n, ok := s.seats[districtID]; ok {
		return n
	}
	return s.defaultSeats
}

// Project applies the named scenario to the district and allocates its
// seats. An unknown scenario name leaves the district unchanged. It fails
// when the district itself is inconsistent or the allocator rejects it.
func (s *DistrictService) Project(ctx context.Context, r domain.DistrictResult, scenario string) (DistrictProjection, error) {
	ctx, span := s.tracer.Start(ctx, "district.project",
		trace.WithAttributes(
			attribute.String("district.id", r.DistrictID),
			attribute.String("scenario", scenario),
		),
	)
	defer span.End()

	if err := r.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid district result")
		return DistrictProjection{}, domain.NewDistrictError(r.DistrictID, "validate", err)
	}

	merged, contested := r, r
	if active, ok := s.scenarios.Lookup(scenario); ok {
		merged = active.Merge(r)
		contested = active.Contested(merged)
	}

	start := time.Now()
	alloc, err := s.allocator.Allocate(ctx, contested)
	if s.metrics != nil {
		s.metrics.RecordLatency(MetricAllocate, time.Since(start), map[string]string{
			"district": r.DistrictID,
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		return DistrictProjection{}, domain.NewDistrictError(r.DistrictID, "allocate", err)
	}
	span.SetAttributes(attribute.Int("district.elected", len(alloc.Elected)))

	return DistrictProjection{
		DistrictID: r.DistrictID,
		Seats:      merged.Seats,
		Scenario:   scenario,
		Status:     StatusOK,
		Result:     merged,
		Allocation: alloc,
		Parity:     s.parity.Assess(merged, alloc),
		Phenomena:  domain.DetectPhenomena(merged, alloc),
	}, nil
}

// ProjectOrDegrade projects the district and substitutes an empty one
// when the district is rejected.
func (s *DistrictService) ProjectOrDegrade(ctx context.Context, r domain.DistrictResult, scenario string) DistrictProjection {
	p, err := s.Project(ctx, r, scenario)
	if err != nil {
		return s.degrade(r.DistrictID, r.Seats, scenario, "", err)
	}
	return p
}

// Fetch reads the district from the source and projects it. Any failure,
// including a timeout or an invalid district, degrades to an empty district
// with the configured seat count; the cause is kept in Error.
func (s *DistrictService) Fetch(ctx context.Context, src ports.ResultSource, districtID, scenario string) DistrictProjection {
	p, err := s.FetchStrict(ctx, src, districtID, scenario)
	if err != nil {
		return s.degrade(districtID, s.Seats(districtID), scenario, src.Name(), err)
	}
	return p
}

// FetchStrict reads the district from the source and projects it. A source
// failure degrades like Fetch does, but a district the source delivered and
// Project rejects is returned as an error.
func (s *DistrictService) FetchStrict(ctx context.Context, src ports.ResultSource, districtID, scenario string) (DistrictProjection, error) {
	r, err := src.FetchDistrict(ctx, districtID)
	if err != nil {
		return s.degrade(districtID, s.Seats(districtID), scenario, src.Name(), err), nil
	}

	p, err := s.Project(ctx, r, scenario)
	if err != nil {
		return DistrictProjection{}, err
	}
	p.Source = src.Name()
	return p, nil
}

func (s *DistrictService) degrade(districtID string, seats int, scenario, source string, err error) DistrictProjection {
	s.logger.Warn("district degraded",
		"district", districtID,
		"source", source,
		"scenario", scenario,
		"error", err,
	)

	empty := domain.Empty(districtID, seats)
	alloc := domain.Allocation{
		DistrictID: districtID,
		Seats:      seats,
		Elected:    []domain.Candidate{},
		Quotas:     []domain.PactQuota{},
	}
	return DistrictProjection{
		DistrictID: districtID,
		Seats:      seats,
		Scenario:   scenario,
		Source:     source,
		Status:     StatusDegraded,
		Error:      err.Error(),
		Result:     empty,
		Allocation: alloc,
		Parity:     s.parity.Assess(empty, alloc),
		Phenomena:  domain.DetectPhenomena(empty, alloc),
	}
}
