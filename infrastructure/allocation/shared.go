// Package allocation implements highest-averages seat allocation over
// normalized district results.
package allocation

import (
	"cmp"
	"slices"

	"github.com/go-playground/validator/v10"
)

// TieBreak represents the strategy for ordering equal quotients and
// equally voted candidates.
type TieBreak string

// Supported tie-breaking strategies.
const (
	// TieInputOrder keeps the order in which the feed enumerated pacts,
	// parties and candidates. This reproduces the reference system,
	// including its sensitivity to feed ordering.
	TieInputOrder TieBreak = "input_order"

	// TieLexical orders equal quotients by owner identifier and then by
	// divisor, and equally voted candidates by identifier. Results no
	// longer depend on feed ordering.
	TieLexical TieBreak = "lexical"
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// quotient is one claim votes/divisor of a pact or party to the next seat.
type quotient struct {
	// owner is the pact or party identifier.
	owner   string
	divisor int
	value   float64
}

// rank sorts quotients by descending value. The sort is stable, so under
// TieInputOrder equal quotients keep their generation order.
func (t TieBreak) rank(qs []quotient) {
	slices.SortStableFunc(qs, func(a, b quotient) int {
		if c := cmp.Compare(b.value, a.value); c != 0 {
			return c
		}
		if t != TieLexical {
			return 0
		}
		if c := cmp.Compare(a.owner, b.owner); c != 0 {
			return c
		}
		return cmp.Compare(a.divisor, b.divisor)
	})
}

// appendQuotients adds votes/1 .. votes/limit for one owner.
func appendQuotients(qs []quotient, owner string, votes float64, limit int) []quotient {
	for d := 1; d <= limit; d++ {
		qs = append(qs, quotient{owner: owner, divisor: d, value: votes / float64(d)})
	}
	return qs
}
