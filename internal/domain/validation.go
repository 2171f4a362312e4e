package domain

import (
	"math"
)

// voteTolerance is the relative tolerance used when comparing vote totals
// accumulated in floating point.
const voteTolerance = 1e-9

// Validate checks the referential and arithmetic invariants of the result:
// unique identifiers, resolvable party and pact references, consistent
// denormalized pact ids, non-negative finite votes and matching totals.
// It returns nil when the result is well formed, or an error wrapping
// ErrInvalidDistrictResult that lists every problem found.
func (r DistrictResult) Validate() error {
	verr := NewValidationError("district "+r.DistrictID, ErrInvalidDistrictResult)

	if r.Seats < 0 {
		verr.AddErrorf("seats must be >= 0, got %d", r.Seats)
	}

	pactVotes := make(map[string]float64, len(r.Pacts))
	for _, p := range r.Pacts {
		if p.ID == "" {
			verr.AddError("pact with empty id")
			continue
		}
		if _, dup := pactVotes[p.ID]; dup {
			verr.AddErrorf("duplicate pact %q", p.ID)
			continue
		}
		if !validVotes(p.Votes) {
			verr.AddErrorf("pact %q has invalid votes %v", p.ID, p.Votes)
		}
		pactVotes[p.ID] = 0
	}

	partyPact := make(map[string]string, len(r.Parties))
	partyVotes := make(map[string]float64, len(r.Parties))
	for _, p := range r.Parties {
		if p.ID == "" {
			verr.AddError("party with empty id")
			continue
		}
		if _, dup := partyPact[p.ID]; dup {
			verr.AddErrorf("duplicate party %q", p.ID)
			continue
		}
		if !validVotes(p.Votes) {
			verr.AddErrorf("party %q has invalid votes %v", p.ID, p.Votes)
		}
		partyPact[p.ID] = p.PactID
		partyVotes[p.ID] = 0
		if _, ok := pactVotes[p.PactID]; !ok {
			verr.AddErrorf("party %q references unknown pact %q", p.ID, p.PactID)
			continue
		}
		pactVotes[p.PactID] += p.Votes
	}

	seen := make(map[string]struct{}, len(r.Candidates))
	for _, c := range r.Candidates {
		if _, dup := seen[c.ID]; dup {
			verr.AddErrorf("duplicate candidate %q", c.ID)
			continue
		}
		seen[c.ID] = struct{}{}

		pactID, ok := partyPact[c.PartyID]
		if !ok {
			verr.AddErrorf("candidate %q references unknown party %q", c.ID, c.PartyID)
			continue
		}
		if c.PactID != pactID {
			verr.AddErrorf("candidate %q has pact %q but its party %q belongs to pact %q",
				c.ID, c.PactID, c.PartyID, pactID)
		}
		if !validVotes(c.Votes) {
			verr.AddErrorf("candidate %q has invalid votes %v", c.ID, c.Votes)
		}
		partyVotes[c.PartyID] += c.Votes
	}

	for _, p := range r.Parties {
		if sum, ok := partyVotes[p.ID]; ok && !sameVotes(sum, p.Votes) {
			verr.AddErrorf("party %q declares %v votes but its candidates sum %v", p.ID, p.Votes, sum)
		}
	}
	for _, p := range r.Pacts {
		if sum, ok := pactVotes[p.ID]; ok && !sameVotes(sum, p.Votes) {
			verr.AddErrorf("pact %q declares %v votes but its parties sum %v", p.ID, p.Votes, sum)
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func validVotes(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sameVotes(a, b float64) bool {
	return math.Abs(a-b) <= voteTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
