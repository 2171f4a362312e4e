// Package feeds turns published vote feeds into normalized district
// results.
//
// Every source produces RawDistrict values which a shared Normalizer turns
// into domain.DistrictResult, so the allocation core never sees the wire
// formats. Sources are composed with middleware for timeouts, retries,
// rate limiting, circuit breaking, metrics and tracing.
//
// Basic usage:
//
//	src := feeds.Chain(feeds.NewFileSource("data", normalizer),
//	    feeds.TracingMiddleware(),
//	    feeds.MetricsMiddleware(collector),
//	    feeds.RetryMiddleware(2, 200*time.Millisecond, 2*time.Second),
//	    feeds.TimeoutMiddleware(4*time.Second),
//	)
//	district, err := src.FetchDistrict(ctx, "10")
package feeds

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RawRecord is one candidate line of a feed before normalization.
type RawRecord struct {
	// ID identifies the candidate within the district feed.
	ID string `json:"id" validate:"required"`

	Name string `json:"name"`

	// Party is the abbreviation of the candidate's own party, or "IND".
	Party string `json:"party"`

	// Quota is the party whose list slot the candidate occupies, when it
	// differs from Party. The seat arithmetic groups candidates by it.
	Quota string `json:"quota,omitempty"`

	// Pact is the coalition letter.
	Pact string `json:"pact" validate:"required"`

	Gender string  `json:"gender"`
	Votes  float64 `json:"votes" validate:"gte=0"`

	// Photo is either an absolute URL or an image id resolved against the
	// configured photo base URL.
	Photo string `json:"photo,omitempty"`
}

// RawDistrict is the feed of one district.
type RawDistrict struct {
	DistrictID string `json:"districtId"`

	// ValidVotes is the declared valid-vote total. When zero, percentages
	// are computed over the sum of the candidates' votes.
	ValidVotes float64 `json:"validVotes" validate:"gte=0"`

	// PactNames overrides the configured pact display names.
	PactNames map[string]string `json:"pactNames,omitempty"`

	Records []RawRecord `json:"records" validate:"dive"`
}
