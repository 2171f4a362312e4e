package domain

import (
	"cmp"
	"slices"
)

// OtherPactID is the identifier of the bucket that folds every
// non-featured pact in a national summary.
const OtherPactID = "others"

// PactTally is the accumulated national result of one pact.
type PactTally struct {
	PactID string  `json:"pactId"`
	Name   string  `json:"name"`
	Votes  float64 `json:"votes"`
	Seats  int     `json:"seats"`
}

// OtherBucket aggregates the votes and seats of every non-featured pact.
type OtherBucket struct {
	Votes float64 `json:"votes"`
	Seats int     `json:"seats"`
}

// NationalSummary accumulates per-pact vote and seat totals across
// districts. It is an explicit insert-or-update map: missing entries start
// from the zero tally and the first display name seen for a pact wins.
// A NationalSummary is owned by a single reducer and is not safe for
// concurrent use.
type NationalSummary struct {
	entries map[string]*PactTally
	// order keeps first-seen insertion order for deterministic output.
	order []string
}

// NewNationalSummary creates an empty summary.
func NewNationalSummary() *NationalSummary {
	return &NationalSummary{entries: make(map[string]*PactTally)}
}

// Accumulate adds votes and seats to the pact's running tally, creating it
// with the given name when it does not exist yet.
func (s *NationalSummary) Accumulate(pactID, name string, votes float64, seats int) {
	t, ok := s.entries[pactID]
	if !ok {
		t = &PactTally{PactID: pactID, Name: name}
		s.entries[pactID] = t
		s.order = append(s.order, pactID)
	}
	t.Votes += votes
	t.Seats += seats
}

// Get returns a copy of the pact's tally.
func (s *NationalSummary) Get(pactID string) (PactTally, bool) {
	t, ok := s.entries[pactID]
	if !ok {
		return PactTally{}, false
	}
	return *t, true
}

// Len returns the number of pacts in the summary.
func (s *NationalSummary) Len() int { return len(s.entries) }

// Tallies returns copies of every tally in first-seen order.
func (s *NationalSummary) Tallies() []PactTally {
	out := make([]PactTally, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id])
	}
	return out
}

// TotalSeats returns the number of seats accumulated across all pacts.
func (s *NationalSummary) TotalSeats() int {
	var total int
	for _, t := range s.entries {
		total += t.Seats
	}
	return total
}

// Partition splits the summary into featured tallies and one Other bucket.
// isFeatured decides per pact; order ranks pacts for the visual ordering
// and is used as the secondary key after descending seats.
func (s *NationalSummary) Partition(isFeatured func(pactID string) bool, order func(pactID string) int) ([]PactTally, OtherBucket) {
	var other OtherBucket
	featured := make([]PactTally, 0, len(s.order))
	for _, t := range s.Tallies() {
		if isFeatured(t.PactID) {
			featured = append(featured, t)
			continue
		}
		other.Votes += t.Votes
		other.Seats += t.Seats
	}

	slices.SortStableFunc(featured, func(a, b PactTally) int {
		if c := cmp.Compare(b.Seats, a.Seats); c != 0 {
			return c
		}
		return cmp.Compare(order(a.PactID), order(b.PactID))
	})
	return featured, other
}
