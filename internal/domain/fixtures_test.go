package domain

// ballot describes one candidate line of a test district.
type ballot struct {
	id     string
	party  string
	pact   string
	votes  float64
	gender string
}

// district builds a consistent DistrictResult from candidate lines. Parties
// and pacts are created in first-seen order with summed votes.
func district(id string, seats int, lines ...ballot) DistrictResult {
	r := Empty(id, seats)
	partyIdx := map[string]int{}
	pactIdx := map[string]int{}
	for _, l := range lines {
		pi, ok := pactIdx[l.pact]
		if !ok {
			pi = len(r.Pacts)
			pactIdx[l.pact] = pi
			r.Pacts = append(r.Pacts, Pact{ID: l.pact, Name: "Pact " + l.pact})
		}
		qi, ok := partyIdx[l.party]
		if !ok {
			qi = len(r.Parties)
			partyIdx[l.party] = qi
			r.Parties = append(r.Parties, Party{ID: l.party, Name: "Party " + l.party, PactID: l.pact})
		}
		r.Pacts[pi].Votes += l.votes
		r.Parties[qi].Votes += l.votes
		r.Candidates = append(r.Candidates, Candidate{
			ID:      l.id,
			Name:    "Candidate " + l.id,
			PartyID: l.party,
			PactID:  l.pact,
			Votes:   l.votes,
			Gender:  l.gender,
		})
	}
	return r
}

func candidateIDs(cs []Candidate) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}
