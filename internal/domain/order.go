package domain

import (
	"cmp"
	"slices"
)

// PactOrder is the fixed visual ordering of pacts used to lay out seats,
// typically left to right on a hemicycle.
type PactOrder struct {
	rank map[string]int
	size int
}

// NewPactOrder builds an ordering from the configured list of pact ids.
// Duplicates keep their first position.
func NewPactOrder(ids []string) PactOrder {
	rank := make(map[string]int, len(ids))
	for _, id := range ids {
		if _, ok := rank[id]; !ok {
			rank[id] = len(rank)
		}
	}
	return PactOrder{rank: rank, size: len(rank)}
}

// WithScenario returns an ordering in which the scenario's synthetic pact
// shares the position of the pact named by Scenario.OrderKey.
func (o PactOrder) WithScenario(s Scenario) PactOrder {
	rank := make(map[string]int, len(o.rank)+1)
	for id, r := range o.rank {
		rank[id] = r
	}
	if r, ok := o.rank[s.OrderKey()]; ok {
		rank[s.NewID] = r
	}
	return PactOrder{rank: rank, size: o.size}
}

// Rank returns the position of the pact. Unknown pacts all rank last.
func (o PactOrder) Rank(pactID string) int {
	if r, ok := o.rank[pactID]; ok {
		return r
	}
	return o.size
}

// SortCandidates orders candidates by the rank of their pact. The sort is
// stable, so candidates of the same pact keep their relative order.
func (o PactOrder) SortCandidates(candidates []Candidate) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return cmp.Compare(o.Rank(a.PactID), o.Rank(b.PactID))
	})
}
