package domain

import (
	"slices"
	"strings"
)

// Gender is the normalized gender of a candidate.
type Gender string

// Normalized genders.
const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderUnknown Gender = "unknown"
)

// DefaultIncentivePerWoman is the amount granted per elected woman when no
// other value is configured.
const DefaultIncentivePerWoman = 500

// ParityPolicy maps raw gender tags to genders and sets the incentive paid
// to pacts and parties for every woman they get elected.
type ParityPolicy struct {
	FemaleTags        []string
	MaleTags          []string
	IncentivePerWoman float64
}

// DefaultParityPolicy returns the policy used by the Chilean feeds, where
// "M" stands for mujer and "H" for hombre.
func DefaultParityPolicy() ParityPolicy {
	return ParityPolicy{
		FemaleTags:        []string{"M", "F"},
		MaleTags:          []string{"H"},
		IncentivePerWoman: DefaultIncentivePerWoman,
	}
}

// Classify normalizes a raw gender tag. Comparison ignores case and
// surrounding whitespace.
func (p ParityPolicy) Classify(tag string) Gender {
	tag = strings.TrimSpace(tag)
	match := func(t string) bool { return strings.EqualFold(t, tag) }
	switch {
	case tag == "":
		return GenderUnknown
	case slices.ContainsFunc(p.FemaleTags, match):
		return GenderFemale
	case slices.ContainsFunc(p.MaleTags, match):
		return GenderMale
	default:
		return GenderUnknown
	}
}

// GenderCount counts candidates by gender.
type GenderCount struct {
	Female  int `json:"female"`
	Male    int `json:"male"`
	Unknown int `json:"unknown"`
}

// Total returns the number of counted candidates.
func (g GenderCount) Total() int { return g.Female + g.Male + g.Unknown }

// FemaleShare returns the fraction of women among counted candidates.
func (g GenderCount) FemaleShare() float64 {
	if g.Total() == 0 {
		return 0
	}
	return float64(g.Female) / float64(g.Total())
}

func (g *GenderCount) add(gender Gender) {
	switch gender {
	case GenderFemale:
		g.Female++
	case GenderMale:
		g.Male++
	default:
		g.Unknown++
	}
}

func (g *GenderCount) merge(o GenderCount) {
	g.Female += o.Female
	g.Male += o.Male
	g.Unknown += o.Unknown
}

// Incentive is the amount earned by a pact, or by a party when PartyID is
// set, for the women it got elected.
type Incentive struct {
	PactID       string  `json:"pactId"`
	PartyID      string  `json:"partyId,omitempty"`
	ElectedWomen int     `json:"electedWomen"`
	Amount       float64 `json:"amount"`
}

// DistrictParity is the gender breakdown of one district.
type DistrictParity struct {
	DistrictID      string      `json:"districtId"`
	Candidates      GenderCount `json:"candidates"`
	Elected         GenderCount `json:"elected"`
	PactIncentives  []Incentive `json:"pactIncentives"`
	PartyIncentives []Incentive `json:"partyIncentives"`
}

// NationalParity sums the gender breakdown over every district.
type NationalParity struct {
	Candidates GenderCount      `json:"candidates"`
	Elected    GenderCount      `json:"elected"`
	Districts  []DistrictParity `json:"districts"`
}

// Assess computes the gender breakdown of a district and its allocation.
// Incentives are listed in first-elected order.
func (p ParityPolicy) Assess(r DistrictResult, a Allocation) DistrictParity {
	out := DistrictParity{
		DistrictID:      r.DistrictID,
		PactIncentives:  []Incentive{},
		PartyIncentives: []Incentive{},
	}
	for _, c := range r.Candidates {
		out.Candidates.add(p.Classify(c.Gender))
	}

	pactIdx := make(map[string]int)
	partyIdx := make(map[string]int)
	for _, c := range a.Elected {
		g := p.Classify(c.Gender)
		out.Elected.add(g)
		if g != GenderFemale {
			continue
		}
		out.PactIncentives = bump(out.PactIncentives, pactIdx, c.PactID, Incentive{PactID: c.PactID}, p.IncentivePerWoman)
		out.PartyIncentives = bump(out.PartyIncentives, partyIdx, c.PartyID, Incentive{PactID: c.PactID, PartyID: c.PartyID}, p.IncentivePerWoman)
	}
	return out
}

func bump(list []Incentive, idx map[string]int, key string, zero Incentive, amount float64) []Incentive {
	i, ok := idx[key]
	if !ok {
		i = len(list)
		idx[key] = i
		list = append(list, zero)
	}
	list[i].ElectedWomen++
	list[i].Amount += amount
	return list
}

// SumParity folds district breakdowns into a national one.
func SumParity(districts []DistrictParity) NationalParity {
	out := NationalParity{Districts: districts}
	if out.Districts == nil {
		out.Districts = []DistrictParity{}
	}
	for _, d := range districts {
		out.Candidates.merge(d.Candidates)
		out.Elected.merge(d.Elected)
	}
	return out
}
