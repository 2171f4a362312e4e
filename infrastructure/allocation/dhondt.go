package allocation

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

var _ domain.Allocator = (*DHondtAllocator)(nil)

// DHondtAllocator converts district votes into elected candidates with a
// two-round D'Hondt cascade: seats are first shared among pacts, then each
// pact's seats are shared among its parties, and every party seat goes to
// the party's next most voted candidate.
// The allocator is stateless and safe for concurrent use.
type DHondtAllocator struct {
	// config contains the validated configuration parameters.
	config Config
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// Config defines the configuration parameters for the DHondtAllocator.
type Config struct {
	// TieBreak defines how equal quotients and equal votes are ordered.
	// Options: "input_order" (feed order), "lexical" (identifier order).
	TieBreak TieBreak `yaml:"tie_break" json:"tie_break" validate:"required,oneof=input_order lexical"`
}

// DefaultConfig returns the configuration matching the reference system.
func DefaultConfig() Config {
	return Config{TieBreak: TieInputOrder}
}

// NewDHondtAllocator creates a new DHondtAllocator with the specified
// configuration. Returns an error if configuration validation fails.
func NewDHondtAllocator(config Config) (*DHondtAllocator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &DHondtAllocator{
		config: config,
		tracer: otel.Tracer("dhondt-allocator"),
	}, nil
}

// Allocate validates the district and runs both D'Hondt rounds.
// Zero seats, no candidates or no positive-vote pacts produce an empty
// allocation. An inconsistent district fails with an error wrapping
// domain.ErrInvalidDistrictResult.
func (a *DHondtAllocator) Allocate(ctx context.Context, district domain.DistrictResult) (domain.Allocation, error) {
	_, span := a.tracer.Start(ctx, "DHondtAllocator.Allocate",
		trace.WithAttributes(
			attribute.String("district.id", district.DistrictID),
			attribute.Int("district.seats", district.Seats),
			attribute.Int("district.candidates", len(district.Candidates)),
			attribute.String("config.tie_break", string(a.config.TieBreak)),
		),
	)
	defer span.End()

	if err := district.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid district result")
		return domain.Allocation{}, fmt.Errorf("allocate district %s: %w", district.DistrictID, err)
	}

	alloc := domain.Allocation{
		DistrictID: district.DistrictID,
		Seats:      district.Seats,
		Elected:    []domain.Candidate{},
		Quotas:     []domain.PactQuota{},
	}
	if district.Seats == 0 || len(district.Candidates) == 0 {
		return alloc, nil
	}

	quotas, visit := a.pactQuotas(district.Pacts, district.Seats)
	byParty := a.candidatesByParty(district.Candidates)

	filled := make(map[string]int, len(quotas))
	for _, pactID := range visit {
		elected := a.fillPact(pactID, quotas[pactID], district.Parties, byParty)
		filled[pactID] = len(elected)
		alloc.Elected = append(alloc.Elected, elected...)
	}

	for _, p := range district.Pacts {
		if q := quotas[p.ID]; q > 0 {
			alloc.Quotas = append(alloc.Quotas, domain.PactQuota{PactID: p.ID, Quota: q, Filled: filled[p.ID]})
		}
	}
	a.sortCandidates(alloc.Elected)

	span.SetAttributes(
		attribute.Int("allocation.elected", len(alloc.Elected)),
		attribute.Int("allocation.pacts", len(alloc.Quotas)),
	)
	return alloc, nil
}

// pactQuotas runs the first round. It returns the seats won per pact and
// the pacts in the order their first winning quotient was ranked, which is
// the order the second round visits them in.
func (a *DHondtAllocator) pactQuotas(pacts []domain.Pact, seats int) (map[string]int, []string) {
	pool := make([]quotient, 0, len(pacts)*seats)
	for _, p := range pacts {
		if p.Votes > 0 {
			pool = appendQuotients(pool, p.ID, p.Votes, seats)
		}
	}
	a.config.TieBreak.rank(pool)

	quotas := make(map[string]int)
	var visit []string
	for _, q := range pool[:min(seats, len(pool))] {
		if quotas[q.owner] == 0 {
			visit = append(visit, q.owner)
		}
		quotas[q.owner]++
	}
	return quotas, visit
}

// fillPact runs the second round for one pact. The quotient of divisor i
// claims the party's i-th most voted candidate; claims beyond the party's
// candidate list are skipped. At most quota candidates are returned.
func (a *DHondtAllocator) fillPact(
	pactID string,
	quota int,
	parties []domain.Party,
	byParty map[string][]domain.Candidate,
) []domain.Candidate {
	var pool []quotient
	for _, p := range parties {
		if p.PactID != pactID || p.Votes <= 0 {
			continue
		}
		pool = appendQuotients(pool, p.ID, p.Votes, max(quota, len(byParty[p.ID])))
	}
	a.config.TieBreak.rank(pool)

	elected := make([]domain.Candidate, 0, quota)
	seen := make(map[string]struct{}, quota)
	for _, q := range pool {
		if len(elected) >= quota {
			break
		}
		list := byParty[q.owner]
		if q.divisor > len(list) {
			continue
		}
		c := list[q.divisor-1]
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		elected = append(elected, c)
	}
	return elected
}

// candidatesByParty groups candidates by party, most voted first.
func (a *DHondtAllocator) candidatesByParty(candidates []domain.Candidate) map[string][]domain.Candidate {
	byParty := make(map[string][]domain.Candidate)
	for _, c := range candidates {
		byParty[c.PartyID] = append(byParty[c.PartyID], c)
	}
	for _, list := range byParty {
		a.sortCandidates(list)
	}
	return byParty
}

// sortCandidates orders candidates by descending votes, resolving equal
// votes according to the tie-break policy.
func (a *DHondtAllocator) sortCandidates(cs []domain.Candidate) {
	if a.config.TieBreak != TieLexical {
		domain.SortByVotes(cs)
		return
	}
	slices.SortStableFunc(cs, func(x, y domain.Candidate) int {
		if c := cmp.Compare(y.Votes, x.Votes); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
}
