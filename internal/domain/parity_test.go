package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParityPolicy_Classify(t *testing.T) {
	p := DefaultParityPolicy()

	tests := []struct {
		tag  string
		want Gender
	}{
		{"M", GenderFemale},
		{"f", GenderFemale},
		{" H ", GenderMale},
		{"", GenderUnknown},
		{"X", GenderUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.tag))
		})
	}
}

func TestParityPolicy_Assess(t *testing.T) {
	// Given a district where two women of pact A and one man of pact B won
	r := district("6010", 3,
		ballot{id: "a1", party: "pa1", pact: "A", votes: 500, gender: "M"},
		ballot{id: "a2", party: "pa2", pact: "A", votes: 400, gender: "M"},
		ballot{id: "a3", party: "pa2", pact: "A", votes: 10, gender: "H"},
		ballot{id: "b1", party: "pb", pact: "B", votes: 300, gender: "H"},
		ballot{id: "b2", party: "pb", pact: "B", votes: 20, gender: ""},
	)
	a := Allocation{DistrictID: "6010", Seats: 3, Elected: []Candidate{r.Candidates[0], r.Candidates[1], r.Candidates[3]}}

	// When parity is assessed
	got := DefaultParityPolicy().Assess(r, a)

	// Then genders are counted on the ballot and among the elected
	assert.Equal(t, GenderCount{Female: 2, Male: 2, Unknown: 1}, got.Candidates)
	assert.Equal(t, GenderCount{Female: 2, Male: 1}, got.Elected)
	assert.InDelta(t, 2.0/3.0, got.Elected.FemaleShare(), 1e-9)

	// And incentives are paid per elected woman
	require.Len(t, got.PactIncentives, 1)
	assert.Equal(t, Incentive{PactID: "A", ElectedWomen: 2, Amount: 1000}, got.PactIncentives[0])
	assert.Equal(t, []Incentive{
		{PactID: "A", PartyID: "pa1", ElectedWomen: 1, Amount: 500},
		{PactID: "A", PartyID: "pa2", ElectedWomen: 1, Amount: 500},
	}, got.PartyIncentives)
}

func TestSumParity(t *testing.T) {
	d1 := DistrictParity{DistrictID: "6001", Candidates: GenderCount{Female: 3, Male: 2}, Elected: GenderCount{Female: 1, Male: 1}}
	d2 := DistrictParity{DistrictID: "6002", Candidates: GenderCount{Female: 1, Male: 4, Unknown: 1}, Elected: GenderCount{Male: 2}}

	got := SumParity([]DistrictParity{d1, d2})

	assert.Equal(t, GenderCount{Female: 4, Male: 6, Unknown: 1}, got.Candidates)
	assert.Equal(t, GenderCount{Female: 1, Male: 3}, got.Elected)
	assert.Equal(t, 11, got.Candidates.Total())
	assert.Len(t, got.Districts, 2)

	empty := SumParity(nil)
	assert.NotNil(t, empty.Districts)
	assert.Zero(t, empty.Elected.FemaleShare())
}
