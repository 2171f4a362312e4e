package domain

import (
	"cmp"
	"slices"
)

// PhenomenonKind names one of the two D'Hondt side effects.
type PhenomenonKind string

const (
	// Dragged marks a candidate elected on the strength of their list
	// while a better-voted candidate of the district was left out.
	Dragged PhenomenonKind = "dragged"

	// Cut marks a candidate left out despite outpolling someone who was
	// elected.
	Cut PhenomenonKind = "cut"
)

// Phenomenon is one candidate affected by the list effect.
type Phenomenon struct {
	Kind       PhenomenonKind `json:"kind"`
	DistrictID string         `json:"districtId"`
	Candidate  Candidate      `json:"candidate"`
}

// Phenomena groups the dragged and cut candidates of one or more districts.
type Phenomena struct {
	Dragged []Phenomenon `json:"dragged"`
	Cut     []Phenomenon `json:"cut"`
}

// DetectPhenomena compares the elected candidates against the rest of the
// ballot. A candidate is dragged when elected with fewer votes than the
// best non-elected candidate, and cut when not elected with more votes
// than the least-voted elected candidate. Both lists follow ballot order.
func DetectPhenomena(r DistrictResult, a Allocation) Phenomena {
	out := Phenomena{Dragged: []Phenomenon{}, Cut: []Phenomenon{}}
	if len(a.Elected) == 0 {
		return out
	}

	minElected := a.Elected[0].Votes
	for _, c := range a.Elected[1:] {
		minElected = min(minElected, c.Votes)
	}
	var (
		maxOut  float64
		anyLeft bool
	)
	for _, c := range r.Candidates {
		if a.IsElected(c.ID) {
			continue
		}
		if !anyLeft || c.Votes > maxOut {
			maxOut = c.Votes
		}
		anyLeft = true
	}
	if !anyLeft {
		return out
	}

	for _, c := range r.Candidates {
		elected := a.IsElected(c.ID)
		switch {
		case elected && c.Votes < maxOut:
			out.Dragged = append(out.Dragged, Phenomenon{Kind: Dragged, DistrictID: r.DistrictID, Candidate: c})
		case !elected && c.Votes > minElected:
			out.Cut = append(out.Cut, Phenomenon{Kind: Cut, DistrictID: r.DistrictID, Candidate: c})
		}
	}
	return out
}

// Merge appends the phenomena of another district.
func (p *Phenomena) Merge(o Phenomena) {
	p.Dragged = append(p.Dragged, o.Dragged...)
	p.Cut = append(p.Cut, o.Cut...)
}

// Top returns at most n entries of each kind. Dragged candidates are ranked
// by ascending votes and cut candidates by descending votes, so the most
// striking cases come first. n <= 0 keeps every entry.
func (p Phenomena) Top(n int) Phenomena {
	dragged := slices.Clone(p.Dragged)
	cut := slices.Clone(p.Cut)
	slices.SortStableFunc(dragged, func(a, b Phenomenon) int {
		return cmp.Compare(a.Candidate.Votes, b.Candidate.Votes)
	})
	slices.SortStableFunc(cut, func(a, b Phenomenon) int {
		return cmp.Compare(b.Candidate.Votes, a.Candidate.Votes)
	})
	if n > 0 {
		dragged = dragged[:min(n, len(dragged))]
		cut = cut[:min(n, len(cut))]
	}
	if dragged == nil {
		dragged = []Phenomenon{}
	}
	if cut == nil {
		cut = []Phenomenon{}
	}
	return Phenomena{Dragged: dragged, Cut: cut}
}
