package testutils

import (
	"fmt"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

// Ballot describes one candidate line of a test district.
type Ballot struct {
	ID     string
	Party  string
	Pact   string
	Votes  float64
	Gender string
}

// District builds a consistent DistrictResult from candidate lines.
// Parties and pacts are created in first-seen order and their vote totals
// are the sums of their candidates, so the result always validates.
func District(id string, seats int, lines ...Ballot) domain.DistrictResult {
	r := domain.Empty(id, seats)
	partyIdx := make(map[string]int)
	pactIdx := make(map[string]int)
	for _, l := range lines {
		pi, ok := pactIdx[l.Pact]
		if !ok {
			pi = len(r.Pacts)
			pactIdx[l.Pact] = pi
			r.Pacts = append(r.Pacts, domain.Pact{ID: l.Pact, Name: "Pacto " + l.Pact})
		}
		qi, ok := partyIdx[l.Party]
		if !ok {
			qi = len(r.Parties)
			partyIdx[l.Party] = qi
			r.Parties = append(r.Parties, domain.Party{ID: l.Party, Name: "Partido " + l.Party, PactID: l.Pact})
		}
		r.Pacts[pi].Votes += l.Votes
		r.Parties[qi].Votes += l.Votes
		r.Candidates = append(r.Candidates, domain.Candidate{
			ID:      l.ID,
			Name:    "Candidate " + l.ID,
			PartyID: l.Party,
			PactID:  l.Pact,
			Votes:   l.Votes,
			Gender:  l.Gender,
		})
	}
	return r
}

// SingleParty builds a district where every pact runs one party with the
// given candidate votes. Candidate ids are "<pact><n>" and party ids are
// "p<pact>".
func SingleParty(id string, seats int, pacts map[string][]float64, order ...string) domain.DistrictResult {
	var lines []Ballot
	for _, pact := range order {
		for i, v := range pacts[pact] {
			lines = append(lines, Ballot{
				ID:    fmt.Sprintf("%s%d", pact, i+1),
				Party: "p" + pact,
				Pact:  pact,
				Votes: v,
			})
		}
	}
	return District(id, seats, lines...)
}

// IDs returns the candidate identifiers in order.
func IDs(cs []domain.Candidate) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}
