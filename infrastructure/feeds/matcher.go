package feeds

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMatchCutoff is the minimum similarity for a poll name to be
// matched to a roster name.
const DefaultMatchCutoff = 0.8

// NormalizeName strips accents, folds case and collapses whitespace so that
// "José  Pérez" and "jose perez" compare equal.
func NormalizeName(s string) string {
	// Casers and transformer chains are stateful, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// Similarity returns 1 minus the Levenshtein distance divided by the length
// of the longer string, in runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// PollEntry is the poll estimate for one candidate.
type PollEntry struct {
	Name  string  `json:"nombre"`
	Votes float64 `json:"votos"`
}

// PollMatcher resolves roster names to poll votes by fuzzy name matching.
// It is read-only after construction and safe for concurrent use.
type PollMatcher struct {
	keys   []string
	votes  map[string]float64
	cutoff float64
}

// NewPollMatcher indexes poll entries by normalized name. When two entries
// normalize to the same name the later one wins. A cutoff outside (0,1]
// falls back to DefaultMatchCutoff.
func NewPollMatcher(entries []PollEntry, cutoff float64) *PollMatcher {
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultMatchCutoff
	}
	m := &PollMatcher{
		votes:  make(map[string]float64, len(entries)),
		cutoff: cutoff,
	}
	for _, e := range entries {
		key := NormalizeName(e.Name)
		if _, ok := m.votes[key]; !ok {
			m.keys = append(m.keys, key)
		}
		m.votes[key] = e.Votes
	}
	return m
}

// Match returns the votes of the poll entry most similar to name. It
// reports false when no entry reaches the cutoff. Equal similarities
// resolve to the entry listed first in the poll.
func (m *PollMatcher) Match(name string) (votes float64, ok bool) {
	key := NormalizeName(name)
	if v, exact := m.votes[key]; exact {
		return v, true
	}

	best, bestScore := "", -1.0
	for _, k := range m.keys {
		if s := Similarity(key, k); s > bestScore {
			best, bestScore = k, s
		}
	}
	if bestScore < m.cutoff {
		return 0, false
	}
	return m.votes[best], true
}
