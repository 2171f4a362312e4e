// Package domain contains pure, dependency-free domain models and
// algorithms for electoral seat projection: the district result model,
// coalition merge scenarios, national summaries and the derived parity and
// D'Hondt phenomena reports.
package domain

import (
	"cmp"
	"slices"
)

// Candidate is a single person on a district ballot.
// Candidates are immutable once handed to an Allocator; Percentage is
// computed by the producing collaborator, never by the allocation code.
type Candidate struct {
	// ID uniquely identifies the candidate within a district.
	ID string `json:"id"`

	// Name is the display name of the candidate.
	Name string `json:"name"`

	// PartyID references the Party (list) the candidate runs under.
	PartyID string `json:"partyId"`

	// PactID references the Pact owning the candidate's party. It is a
	// denormalized copy of the party's PactID used for fast grouping.
	PactID string `json:"pactId"`

	// Votes is the number of votes obtained. It is never negative.
	Votes float64 `json:"votes"`

	// Gender is the raw gender tag reported by the source feed.
	Gender string `json:"gender"`

	// Percentage is the candidate's share of the district valid vote,
	// rounded to two decimals by the collaborator.
	Percentage float64 `json:"percentage"`

	// DisplayParty is the party abbreviation shown next to the candidate,
	// which can differ from the party used for the seat arithmetic.
	DisplayParty string `json:"displayParty,omitempty"`

	// PhotoURL points to the candidate portrait, if any.
	PhotoURL string `json:"photoUrl,omitempty"`
}

// Party is a list inside a Pact. Its vote total is the sum of the votes
// of its candidates.
type Party struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	PactID string  `json:"pactId"`
	Votes  float64 `json:"votes"`
}

// Pact is a coalition of one or more parties. Its vote total is the sum
// of the votes of its parties.
type Pact struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Votes float64 `json:"votes"`
}

// DistrictResult is the normalized ballot of one electoral district
// together with the number of seats it elects.
// It is built fresh for every request by a collaborator and is owned by
// that request.
type DistrictResult struct {
	// DistrictID identifies the district (for example "6010").
	DistrictID string `json:"districtId"`

	Candidates []Candidate `json:"candidates"`
	Parties    []Party     `json:"parties"`
	Pacts      []Pact      `json:"pacts"`

	// Seats is the number of seats to allocate in the district.
	Seats int `json:"seats"`
}

// Empty returns a DistrictResult for the given district with no ballot
// data. It is the degraded result used when a source cannot produce one.
func Empty(districtID string, seats int) DistrictResult {
	return DistrictResult{
		DistrictID: districtID,
		Candidates: []Candidate{},
		Parties:    []Party{},
		Pacts:      []Pact{},
		Seats:      seats,
	}
}

// Clone returns a deep copy of the result so callers can rewrite it
// without affecting other users of the original slices.
func (r DistrictResult) Clone() DistrictResult {
	return DistrictResult{
		DistrictID: r.DistrictID,
		Candidates: slices.Clone(r.Candidates),
		Parties:    slices.Clone(r.Parties),
		Pacts:      slices.Clone(r.Pacts),
		Seats:      r.Seats,
	}
}

// WithoutPact returns a copy of the result without the given pact and
// without the parties and candidates that reference it.
func (r DistrictResult) WithoutPact(pactID string) DistrictResult {
	out := r.Clone()
	out.Pacts = slices.DeleteFunc(out.Pacts, func(p Pact) bool { return p.ID == pactID })
	out.Parties = slices.DeleteFunc(out.Parties, func(p Party) bool { return p.PactID == pactID })
	out.Candidates = slices.DeleteFunc(out.Candidates, func(c Candidate) bool { return c.PactID == pactID })
	return out
}

// TotalVotes returns the sum of the votes of all pacts.
func (r DistrictResult) TotalVotes() float64 {
	var total float64
	for _, p := range r.Pacts {
		total += p.Votes
	}
	return total
}

// PactByID returns the pact with the given identifier.
func (r DistrictResult) PactByID(id string) (Pact, bool) {
	for _, p := range r.Pacts {
		if p.ID == id {
			return p, true
		}
	}
	return Pact{}, false
}

// PactQuota records how many seats a pact won in the first D'Hondt round
// and how many of them were filled with candidates.
type PactQuota struct {
	PactID string `json:"pactId"`
	Quota  int    `json:"quota"`
	Filled int    `json:"filled"`
}

// Allocation is the outcome of running an Allocator over one district.
type Allocation struct {
	DistrictID string `json:"districtId"`
	Seats      int    `json:"seats"`

	// Elected holds at most Seats candidates sorted by descending votes.
	Elected []Candidate `json:"elected"`

	// Quotas lists the first-round seats of every pact that won at least
	// one, in the district's pact order.
	Quotas []PactQuota `json:"quotas"`
}

// SeatsByPact counts the elected candidates per pact.
func (a Allocation) SeatsByPact() map[string]int {
	seats := make(map[string]int, len(a.Quotas))
	for _, c := range a.Elected {
		seats[c.PactID]++
	}
	return seats
}

// IsElected reports whether the candidate with the given id was elected.
func (a Allocation) IsElected(candidateID string) bool {
	return slices.ContainsFunc(a.Elected, func(c Candidate) bool { return c.ID == candidateID })
}

// SortByVotes orders candidates by descending votes. The sort is stable so
// equal votes keep their relative input order.
func SortByVotes(candidates []Candidate) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return cmp.Compare(b.Votes, a.Votes)
	})
}
