package allocation

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/testutils"
)

func newAllocator(t *testing.T, tie TieBreak) *DHondtAllocator {
	t.Helper()
	a, err := NewDHondtAllocator(Config{TieBreak: tie})
	require.NoError(t, err)
	return a
}

func TestDHondtAllocator_Allocate(t *testing.T) {
	tests := []struct {
		name        string
		district    domain.DistrictResult
		wantElected []string
		wantQuotas  []domain.PactQuota
	}{
		{
			name: "classic three pacts",
			district: testutils.SingleParty("6001", 3, map[string][]float64{
				"A": {6000, 3000, 1000},
				"B": {4000, 1500, 500},
				"C": {2000},
			}, "A", "B", "C"),
			wantElected: []string{"A1", "B1", "A2"},
			wantQuotas: []domain.PactQuota{
				{PactID: "A", Quota: 2, Filled: 2},
				{PactID: "B", Quota: 1, Filled: 1},
			},
		},
		{
			name: "insufficient candidates leave the seat empty",
			district: testutils.SingleParty("6002", 3, map[string][]float64{
				"A": {9000, 1000},
				"B": {500},
			}, "A", "B"),
			wantElected: []string{"A1", "A2"},
			wantQuotas:  []domain.PactQuota{{PactID: "A", Quota: 3, Filled: 2}},
		},
		{
			name: "parties share the pact quota",
			district: testutils.District("6003", 3,
				testutils.Ballot{ID: "x1", Party: "p1", Pact: "A", Votes: 500},
				testutils.Ballot{ID: "x2", Party: "p1", Pact: "A", Votes: 100},
				testutils.Ballot{ID: "y1", Party: "p2", Pact: "A", Votes: 300},
				testutils.Ballot{ID: "z1", Party: "p3", Pact: "B", Votes: 200},
			),
			wantElected: []string{"x1", "y1", "x2"},
			wantQuotas:  []domain.PactQuota{{PactID: "A", Quota: 3, Filled: 3}},
		},
		{
			name: "strong candidate does not pull a weak party",
			district: testutils.District("6004", 2,
				testutils.Ballot{ID: "a1", Party: "pa", Pact: "A", Votes: 1000},
				testutils.Ballot{ID: "a2", Party: "pa", Pact: "A", Votes: 10},
				testutils.Ballot{ID: "b1", Party: "pb", Pact: "B", Votes: 600},
			),
			wantElected: []string{"a1", "b1"},
			wantQuotas: []domain.PactQuota{
				{PactID: "A", Quota: 1, Filled: 1},
				{PactID: "B", Quota: 1, Filled: 1},
			},
		},
		{
			name: "zero seats",
			district: testutils.SingleParty("6005", 0, map[string][]float64{
				"A": {100},
			}, "A"),
			wantElected: []string{},
			wantQuotas:  []domain.PactQuota{},
		},
		{
			name: "no positive pacts",
			district: testutils.SingleParty("6006", 3, map[string][]float64{
				"A": {0, 0},
				"B": {0},
			}, "A", "B"),
			wantElected: []string{},
			wantQuotas:  []domain.PactQuota{},
		},
		{
			name:        "no candidates",
			district:    domain.Empty("6007", 5),
			wantElected: []string{},
			wantQuotas:  []domain.PactQuota{},
		},
		{
			name: "zero vote party inside a winning pact is skipped",
			district: testutils.District("6008", 2,
				testutils.Ballot{ID: "a1", Party: "pa", Pact: "A", Votes: 100},
				testutils.Ballot{ID: "n1", Party: "pn", Pact: "A", Votes: 0},
			),
			wantElected: []string{"a1"},
			wantQuotas:  []domain.PactQuota{{PactID: "A", Quota: 2, Filled: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a default allocator
			a := newAllocator(t, TieInputOrder)

			// When the district is allocated
			got, err := a.Allocate(context.Background(), tt.district)

			// Then the elected candidates and quotas match
			require.NoError(t, err)
			assert.Equal(t, tt.district.DistrictID, got.DistrictID)
			assert.Equal(t, tt.district.Seats, got.Seats)
			assert.Equal(t, tt.wantElected, testutils.IDs(got.Elected))
			assert.Equal(t, tt.wantQuotas, got.Quotas)
		})
	}
}

func TestDHondtAllocator_ClassicSeatsPerPact(t *testing.T) {
	// 10000/6000/2000 with 3 seats yields A=2, B=1, C=0.
	d := testutils.SingleParty("6001", 3, map[string][]float64{
		"A": {10000, 0, 0},
		"B": {6000, 0, 0},
		"C": {2000, 0, 0},
	}, "A", "B", "C")

	got, err := newAllocator(t, TieInputOrder).Allocate(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A": 2, "B": 1}, got.SeatsByPact())
}

func TestDHondtAllocator_TieBreaks(t *testing.T) {
	tests := []struct {
		name      string
		district  domain.DistrictResult
		wantInput []string
		wantLex   []string
	}{
		{
			name: "equal pact quotients",
			district: testutils.District("6010", 1,
				testutils.Ballot{ID: "b1", Party: "pb", Pact: "B", Votes: 100},
				testutils.Ballot{ID: "a1", Party: "pa", Pact: "A", Votes: 100},
			),
			wantInput: []string{"b1"},
			wantLex:   []string{"a1"},
		},
		{
			name: "equal party quotients",
			district: testutils.District("6011", 2,
				testutils.Ballot{ID: "z1", Party: "zeta", Pact: "A", Votes: 500},
				testutils.Ballot{ID: "z2", Party: "zeta", Pact: "A", Votes: 100},
				testutils.Ballot{ID: "a1", Party: "alpha", Pact: "A", Votes: 300},
				testutils.Ballot{ID: "b1", Party: "pb", Pact: "B", Votes: 200},
			),
			wantInput: []string{"z1", "z2"},
			wantLex:   []string{"z1", "a1"},
		},
		{
			name: "equal candidate votes",
			district: testutils.District("6012", 1,
				testutils.Ballot{ID: "x2", Party: "p", Pact: "A", Votes: 50},
				testutils.Ballot{ID: "x1", Party: "p", Pact: "A", Votes: 50},
			),
			wantInput: []string{"x2"},
			wantLex:   []string{"x1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			byInput, err := newAllocator(t, TieInputOrder).Allocate(context.Background(), tt.district)
			require.NoError(t, err)
			assert.Equal(t, tt.wantInput, testutils.IDs(byInput.Elected))

			byID, err := newAllocator(t, TieLexical).Allocate(context.Background(), tt.district)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLex, testutils.IDs(byID.Elected))
		})
	}
}

func TestDHondtAllocator_RejectsInconsistentDistricts(t *testing.T) {
	d := testutils.SingleParty("6013", 2, map[string][]float64{"A": {10, 5}}, "A")
	d.Candidates[1].PartyID = "ghost"

	_, err := newAllocator(t, TieInputOrder).Allocate(context.Background(), d)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDistrictResult)
	assert.Contains(t, err.Error(), "allocate district 6013")
}

func TestDHondtAllocator_DoesNotMutateInput(t *testing.T) {
	d := testutils.SingleParty("6014", 2, map[string][]float64{
		"A": {10, 30, 20},
		"B": {25},
	}, "A", "B")
	before := d.Clone()

	_, err := newAllocator(t, TieInputOrder).Allocate(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, before, d)
}

// TestDHondtAllocator_Properties checks the allocation invariants over
// generated districts.
func TestDHondtAllocator_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := newAllocator(t, TieInputOrder)

	for i := range 200 {
		seats := rng.Intn(9)
		d, roomy := randomDistrict(rng, fmt.Sprintf("60%02d", i%28+1), seats)

		got, err := a.Allocate(context.Background(), d)
		require.NoError(t, err)

		// At most seats are filled, and all of them when every party has
		// enough candidates.
		assert.LessOrEqual(t, len(got.Elected), seats)
		if roomy && d.TotalVotes() > 0 {
			assert.Len(t, got.Elected, seats, "district %d", i)
		}

		// No candidate is elected twice and every one comes from the ballot.
		seen := map[string]bool{}
		ballot := map[string]domain.Candidate{}
		for _, c := range d.Candidates {
			ballot[c.ID] = c
		}
		for _, c := range got.Elected {
			assert.False(t, seen[c.ID], "candidate %s elected twice", c.ID)
			seen[c.ID] = true
			assert.Equal(t, ballot[c.ID], c)
		}

		// Seats never leak between pacts.
		byPact := got.SeatsByPact()
		quota := 0
		for _, q := range got.Quotas {
			assert.Equal(t, q.Filled, byPact[q.PactID], "pact %s", q.PactID)
			assert.LessOrEqual(t, q.Filled, q.Quota)
			quota += q.Quota
		}
		if d.TotalVotes() > 0 {
			assert.Equal(t, seats, quota)
		}

		// Elected candidates come out by descending votes.
		for j := 1; j < len(got.Elected); j++ {
			assert.GreaterOrEqual(t, got.Elected[j-1].Votes, got.Elected[j].Votes)
		}
	}
}

// randomDistrict builds a district with up to 4 pacts of up to 3 parties.
// roomy reports whether every party with votes has at least seats
// candidates.
func randomDistrict(rng *rand.Rand, id string, seats int) (domain.DistrictResult, bool) {
	var lines []testutils.Ballot
	roomy := true
	for p := range rng.Intn(4) + 1 {
		pact := string(rune('A' + p))
		for q := range rng.Intn(3) + 1 {
			party := fmt.Sprintf("%s-%d", pact, q)
			n := rng.Intn(seats+2) + 1
			var total float64
			for c := range n {
				v := float64(rng.Intn(5000))
				total += v
				lines = append(lines, testutils.Ballot{ID: fmt.Sprintf("%s-%d", party, c), Party: party, Pact: pact, Votes: v})
			}
			if total > 0 && n < seats {
				roomy = false
			}
		}
	}
	return testutils.District(id, seats, lines...), roomy
}

func TestNewDHondtAllocator_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default", config: DefaultConfig()},
		{name: "lexical", config: Config{TieBreak: TieLexical}},
		{name: "missing tie break", config: Config{}, wantErr: true},
		{name: "unknown tie break", config: Config{TieBreak: "random"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewDHondtAllocator(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, a)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, a)
		})
	}
}
