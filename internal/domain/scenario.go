package domain

import (
	"fmt"
	"slices"
)

// Scenario is a hypothetical fusion of several pacts into one synthetic
// coalition, used for what-if seat projections.
type Scenario struct {
	// Name is the identifier users select the scenario by.
	Name string `json:"name" yaml:"name"`

	// Label is a human readable description of the scenario.
	Label string `json:"label,omitempty" yaml:"label"`

	// NewID is the identifier of the synthetic pact.
	NewID string `json:"newId" yaml:"new_id"`

	// NewName is the display name of the synthetic pact.
	NewName string `json:"newName" yaml:"new_name"`

	// MergeIDs lists the pacts fused into the synthetic pact.
	MergeIDs []string `json:"mergeIds" yaml:"merge_ids"`

	// OrderAs names the pact whose position in the visual ordering the
	// synthetic pact takes. When empty the first merged pact is used.
	OrderAs string `json:"orderAs,omitempty" yaml:"order_as"`
}

// Validate checks that the scenario names a synthetic pact and at least
// one pact to merge.
func (s Scenario) Validate() error {
	verr := NewValidationError("scenario "+s.Name, ErrInvalidScenario)
	if s.Name == "" {
		verr.AddError("name is required")
	}
	if s.NewID == "" {
		verr.AddError("new_id is required")
	}
	if len(s.MergeIDs) == 0 {
		verr.AddError("merge_ids must list at least one pact")
	}
	if slices.Contains(s.MergeIDs, s.NewID) {
		verr.AddErrorf("new_id %q cannot also be merged", s.NewID)
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Absorbs reports whether the pact is fused away by the scenario.
func (s Scenario) Absorbs(pactID string) bool { return slices.Contains(s.MergeIDs, pactID) }

// OrderKey returns the pact identifier whose visual position the
// synthetic pact inherits.
func (s Scenario) OrderKey() string {
	if s.OrderAs != "" {
		return s.OrderAs
	}
	if len(s.MergeIDs) > 0 {
		return s.MergeIDs[0]
	}
	return s.NewID
}

// Merge returns a new DistrictResult in which the scenario's pacts are
// fused into one synthetic pact. The input is never modified.
//
// The synthetic pact carries the summed votes of the fused pacts and takes
// the position of the first fused pact found in the input; it is only
// present when that sum is positive. Parties and candidates that referenced
// a fused pact are rewritten to reference the synthetic one. Applying the
// same scenario twice is a no-op because the fused pacts no longer exist.
func (s Scenario) Merge(r DistrictResult) DistrictResult {
	out := DistrictResult{
		DistrictID: r.DistrictID,
		Seats:      r.Seats,
		Pacts:      make([]Pact, 0, len(r.Pacts)),
		Parties:    make([]Party, 0, len(r.Parties)),
		Candidates: make([]Candidate, 0, len(r.Candidates)),
	}

	var merged float64
	slot := -1
	for _, p := range r.Pacts {
		if !s.Absorbs(p.ID) {
			out.Pacts = append(out.Pacts, p)
			continue
		}
		merged += p.Votes
		if slot < 0 {
			slot = len(out.Pacts)
		}
	}
	if slot >= 0 && merged > 0 {
		out.Pacts = slices.Insert(out.Pacts, slot, Pact{ID: s.NewID, Name: s.NewName, Votes: merged})
	}

	for _, p := range r.Parties {
		if s.Absorbs(p.PactID) {
			p.PactID = s.NewID
		}
		out.Parties = append(out.Parties, p)
	}
	for _, c := range r.Candidates {
		if s.Absorbs(c.PactID) {
			c.PactID = s.NewID
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}

// Contested returns the part of a merged result that can win seats. When
// the fused pacts had no votes the synthetic pact is omitted, and the
// parties and candidates rewritten to it are dropped as well so the result
// stays referentially consistent.
func (s Scenario) Contested(merged DistrictResult) DistrictResult {
	if _, ok := merged.PactByID(s.NewID); ok {
		return merged
	}
	return merged.WithoutPact(s.NewID)
}

// ScenarioSet is the static catalogue of scenarios keyed by name.
type ScenarioSet map[string]Scenario

// NewScenarioSet builds a catalogue from a list of scenarios, rejecting
// invalid or duplicated definitions.
func NewScenarioSet(scenarios []Scenario) (ScenarioSet, error) {
	set := make(ScenarioSet, len(scenarios))
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario %q", ErrInvalidScenario, s.Name)
		}
		set[s.Name] = s
	}
	return set, nil
}

// Lookup returns the scenario with the given name. The empty name never
// matches.
func (set ScenarioSet) Lookup(name string) (Scenario, bool) {
	if name == "" {
		return Scenario{}, false
	}
	s, ok := set[name]
	return s, ok
}

// Apply merges the named scenario into the result. An empty or unknown
// name returns the input unchanged; that is a no-op, not an error.
func (set ScenarioSet) Apply(r DistrictResult, name string) DistrictResult {
	s, ok := set.Lookup(name)
	if !ok {
		return r
	}
	return s.Merge(r)
}

// Names returns the scenario names in lexical order.
func (set ScenarioSet) Names() []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
