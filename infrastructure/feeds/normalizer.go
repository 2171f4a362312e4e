package feeds

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

// IndependentParty is the party abbreviation of candidates running
// without a party.
const IndependentParty = "IND"

// districtPrefix is prepended to the two-digit district number to build
// the canonical id, as in "6010" for district 10.
const districtPrefix = "60"

// NormalizeDistrictID accepts either a district number ("10", "7") or a
// canonical id ("6010") and returns the canonical id.
func NormalizeDistrictID(id string) (string, error) {
	id = strings.TrimSpace(id)
	n, err := strconv.Atoi(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDistrict, id)
	}
	switch {
	case n >= 1 && n <= 99:
		return fmt.Sprintf("%s%02d", districtPrefix, n), nil
	case n > 6000 && n < 6100:
		return strconv.Itoa(n), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownDistrict, id)
	}
}

// NormalizerOptions holds the reference tables a Normalizer resolves
// names and seats against.
type NormalizerOptions struct {
	// Seats maps canonical district ids to seats.
	Seats map[string]int
	// DefaultSeats is used for districts missing from Seats.
	DefaultSeats int
	PactNames    map[string]string
	PartyNames   map[string]string
	// PhotoBaseURL prefixes photo ids; "<base><id>.jpg".
	PhotoBaseURL string
}

// Normalizer builds DistrictResults from raw feeds.
// A Normalizer is read-only after construction and safe for concurrent
// use.
type Normalizer struct {
	opts NormalizerOptions
}

// NewNormalizer creates a Normalizer over the given reference tables.
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	return &Normalizer{opts: opts}
}

// Seats returns the seats of a canonical district id.
func (n *Normalizer) Seats(districtID string) int {
	if s, ok := n.opts.Seats[districtID]; ok {
		return s
	}
	return n.opts.DefaultSeats
}

// Normalize groups the raw records into parties and pacts.
//
// Candidates are grouped by "<pact>-<quota or party>". A candidate of party
// IND without a quota is a pure independent and gets a list of its own,
// "<pact>-IND_<id>", displayed as IND. Party and pact totals are the sums
// of their candidates and keep first-seen order. Percentages are rounded to
// two decimals over ValidVotes, or over the vote sum when ValidVotes is 0.
func (n *Normalizer) Normalize(raw RawDistrict) (domain.DistrictResult, error) {
	districtID, err := NormalizeDistrictID(raw.DistrictID)
	if err != nil {
		return domain.DistrictResult{}, err
	}
	if err := validate.Struct(raw); err != nil {
		verr := domain.NewValidationError("district "+districtID, domain.ErrInvalidDistrictResult)
		verr.AddError(err.Error())
		return domain.DistrictResult{}, verr
	}

	out := domain.Empty(districtID, n.Seats(districtID))
	pactIdx := make(map[string]int)
	partyIdx := make(map[string]int)
	seen := make(map[string]struct{}, len(raw.Records))

	var sum float64
	for _, r := range raw.Records {
		if _, dup := seen[r.ID]; dup {
			verr := domain.NewValidationError("district "+districtID, domain.ErrInvalidDistrictResult)
			verr.AddErrorf("candidate %q listed twice", r.ID)
			return domain.DistrictResult{}, verr
		}
		seen[r.ID] = struct{}{}
		sum += r.Votes

		i, ok := pactIdx[r.Pact]
		if !ok {
			i = len(out.Pacts)
			pactIdx[r.Pact] = i
			out.Pacts = append(out.Pacts, domain.Pact{ID: r.Pact, Name: n.pactName(raw, r.Pact)})
		}
		out.Pacts[i].Votes += r.Votes

		key, name := n.partyKey(r)
		partyID := r.Pact + "-" + key
		j, ok := partyIdx[partyID]
		if !ok {
			j = len(out.Parties)
			partyIdx[partyID] = j
			out.Parties = append(out.Parties, domain.Party{ID: partyID, Name: name, PactID: r.Pact})
		}
		out.Parties[j].Votes += r.Votes

		display := r.Party
		if display == "" {
			display = IndependentParty
		}
		candidateName := r.Name
		if candidateName == "" {
			candidateName = r.ID
		}
		out.Candidates = append(out.Candidates, domain.Candidate{
			ID:           r.ID,
			Name:         candidateName,
			PartyID:      partyID,
			PactID:       r.Pact,
			Votes:        r.Votes,
			Gender:       r.Gender,
			DisplayParty: display,
			PhotoURL:     n.photoURL(r.Photo),
		})
	}

	base := raw.ValidVotes
	if base <= 0 {
		base = sum
	}
	if base > 0 {
		for i := range out.Candidates {
			out.Candidates[i].Percentage = round2(out.Candidates[i].Votes / base * 100)
		}
	}
	return out, nil
}

func (n *Normalizer) partyKey(r RawRecord) (key, name string) {
	party := r.Party
	if party == "" {
		party = IndependentParty
	}
	if r.Quota != "" {
		key = r.Quota
	} else if party == IndependentParty {
		return IndependentParty + "_" + r.ID, IndependentParty
	} else {
		key = party
	}
	if display, ok := n.opts.PartyNames[key]; ok {
		return key, display
	}
	return key, key
}

func (n *Normalizer) pactName(raw RawDistrict, pactID string) string {
	if name, ok := raw.PactNames[pactID]; ok && name != "" {
		return name
	}
	if name, ok := n.opts.PactNames[pactID]; ok {
		return name
	}
	return "Lista " + pactID
}

func (n *Normalizer) photoURL(photo string) string {
	photo = strings.TrimSpace(photo)
	switch {
	case photo == "":
		return ""
	case strings.HasPrefix(photo, "http://"), strings.HasPrefix(photo, "https://"):
		return photo
	case n.opts.PhotoBaseURL == "":
		return ""
	default:
		return n.opts.PhotoBaseURL + photo + ".jpg"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
