package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// DistrictOutcome is the per-district line of a national run.
type DistrictOutcome struct {
	DistrictID string         `json:"districtId"`
	Seats      int            `json:"seats"`
	Elected    int            `json:"elected"`
	Status     DistrictStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
}

// NationalResult is the national seat projection under a scenario.
type NationalResult struct {
	// ID identifies the run in logs and traces.
	ID       string `json:"id"`
	Scenario string `json:"scenario,omitempty"`
	Source   string `json:"source,omitempty"`

	// Elected lists every elected candidate ordered by the visual pact
	// order, keeping district order within a pact.
	Elected []domain.Candidate `json:"elected"`

	// Summary holds the featured pacts sorted by seats.
	Summary     []domain.PactTally `json:"summary"`
	OtherBucket domain.OtherBucket `json:"otherBucket"`
	TotalSeats  int                `json:"totalSeats"`

	Districts []DistrictOutcome     `json:"districts"`
	Parity    domain.NationalParity `json:"parity"`
	Phenomena domain.Phenomena      `json:"phenomena"`
}

// Degraded returns the number of districts that fell back to an empty
// result.
func (r *NationalResult) Degraded() int {
	var n int
	for _, d := range r.Districts {
		if d.Status == StatusDegraded {
			n++
		}
	}
	return n
}

// NationalAggregator projects every district concurrently and reduces the
// outcomes into one national result.
//
// Workers share no mutable state: each one writes only its own slot of
// the outcome slice, and a single reducer walks the slots in input order
// once every worker is done. A failing district never aborts the run; only
// cancellation of the caller's context does.
type NationalAggregator struct {
	service     *DistrictService
	districtIDs []string
	featured    map[string]bool
	order       domain.PactOrder
	concurrency int
	timeout     time.Duration
	top         int
	options
	tracer trace.Tracer
}

// NewNationalAggregator builds an aggregator over the configured districts.
func NewNationalAggregator(cfg *ElectionConfig, service *DistrictService, opts ...Option) (*NationalAggregator, error) {
	if cfg == nil || service == nil {
		return nil, fmt.Errorf("%w: national aggregator needs a config and a district service", domain.ErrInvalidConfiguration)
	}
	concurrency := cfg.Aggregation.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &NationalAggregator{
		service:     service,
		districtIDs: cfg.DistrictIDs(),
		featured:    cfg.FeaturedPacts(),
		order:       cfg.PactOrder(),
		concurrency: concurrency,
		timeout:     cfg.DistrictTimeout(),
		top:         cfg.Phenomena.Top,
		options:     buildOptions(opts),
		tracer:      otel.Tracer("application"),
	}, nil
}

// DistrictIDs returns the configured districts in seat table order.
func (a *NationalAggregator) DistrictIDs() []string {
	return append([]string(nil), a.districtIDs...)
}

// Aggregate projects already fetched districts. Districts the allocator
// rejects count as empty.
func (a *NationalAggregator) Aggregate(ctx context.Context, results []domain.DistrictResult, scenario string) (*NationalResult, error) {
	return a.run(ctx, len(results), scenario, "", func(ctx context.Context, i int) DistrictProjection {
		return a.service.ProjectOrDegrade(ctx, results[i], scenario)
	})
}

// AggregateDistricts fetches each district through src inside the worker
// and projects it. A nil ids slice means every configured district.
func (a *NationalAggregator) AggregateDistricts(ctx context.Context, src ports.ResultSource, ids []string, scenario string) (*NationalResult, error) {
	if ids == nil {
		ids = a.districtIDs
	}
	return a.run(ctx, len(ids), scenario, src.Name(), func(ctx context.Context, i int) DistrictProjection {
		return a.service.Fetch(ctx, src, ids[i], scenario)
	})
}

func (a *NationalAggregator) run(
	ctx context.Context,
	n int,
	scenario, source string,
	project func(ctx context.Context, i int) DistrictProjection,
) (*NationalResult, error) {
	runID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "national.aggregate",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("scenario", scenario),
			attribute.Int("districts", n),
		),
	)
	defer span.End()

	start := time.Now()
	a.logger.Info("national run started",
		"run_id", runID,
		"districts", n,
		"scenario", scenario,
		"source", source,
		"concurrency", a.concurrency,
	)

	outcomes := make([]DistrictProjection, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dctx, cancel := gctx, context.CancelFunc(func() {})
			if a.timeout > 0 {
				dctx, cancel = context.WithTimeout(gctx, a.timeout)
			}
			defer cancel()

			outcomes[i] = project(dctx, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "national run canceled")
		a.logger.Error("national run canceled", "run_id", runID, "error", err)
		return nil, err
	}

	result := a.reduce(outcomes, scenario)
	result.ID = runID
	result.Source = source

	degraded := result.Degraded()
	span.SetAttributes(
		attribute.Int("seats.total", result.TotalSeats),
		attribute.Int("districts.degraded", degraded),
	)
	if a.metrics != nil {
		a.metrics.RecordLatency(MetricNationalRun, time.Since(start), map[string]string{"scenario": scenario})
	}
	a.logger.Info("national run completed",
		"run_id", runID,
		"seats", result.TotalSeats,
		"degraded", degraded,
		"duration", time.Since(start),
	)
	return result, nil
}

// reduce folds the outcomes in input order. It runs on a single goroutine.
func (a *NationalAggregator) reduce(outcomes []DistrictProjection, scenario string) *NationalResult {
	summary := domain.NewNationalSummary()
	elected := make([]domain.Candidate, 0)
	parities := make([]domain.DistrictParity, 0, len(outcomes))
	phenomena := domain.Phenomena{Dragged: []domain.Phenomenon{}, Cut: []domain.Phenomenon{}}
	districts := make([]DistrictOutcome, 0, len(outcomes))

	for _, p := range outcomes {
		seats := p.Allocation.SeatsByPact()
		for _, pact := range p.Result.Pacts {
			summary.Accumulate(pact.ID, pact.Name, pact.Votes, seats[pact.ID])
		}
		elected = append(elected, p.Allocation.Elected...)
		parities = append(parities, p.Parity)
		phenomena.Merge(p.Phenomena)
		districts = append(districts, DistrictOutcome{
			DistrictID: p.DistrictID,
			Seats:      p.Seats,
			Elected:    len(p.Allocation.Elected),
			Status:     p.Status,
			Error:      p.Error,
		})
		if a.metrics != nil {
			a.metrics.RecordCounter(MetricDistrictOutcomes, 1, map[string]string{"status": string(p.Status)})
		}
	}

	order := a.order
	active, hasScenario := a.service.Scenarios().Lookup(scenario)
	if hasScenario {
		order = order.WithScenario(active)
	}
	order.SortCandidates(elected)

	isFeatured := func(pactID string) bool {
		if hasScenario {
			if pactID == active.NewID {
				return true
			}
			if active.Absorbs(pactID) {
				return false
			}
		}
		return a.featured[pactID]
	}
	featured, other := summary.Partition(isFeatured, order.Rank)

	if a.metrics != nil {
		for _, t := range summary.Tallies() {
			a.metrics.RecordGauge(MetricPactSeats, float64(t.Seats), map[string]string{
				"pact":     t.PactID,
				"scenario": scenario,
			})
		}
	}

	return &NationalResult{
		Scenario:    scenario,
		Elected:     elected,
		Summary:     featured,
		OtherBucket: other,
		TotalSeats:  summary.TotalSeats(),
		Districts:   districts,
		Parity:      domain.SumParity(parities),
		Phenomena:   phenomena.Top(a.top),
	}
}
