// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

// ResultSource produces normalized district results from a vote feed.
// Implementations own every I/O concern: fetching, parsing, name matching
// and seat lookup. The core only ever sees the DistrictResult.
type ResultSource interface {
	// Name returns the identifier the source is registered under, such as
	// "live" or "simulation".
	Name() string

	// FetchDistrict returns the ballot of one district, tagged with the
	// number of seats it elects. A fresh value is built on every call so
	// callers own what they receive.
	//
	// Implementations should respect context cancellation and deadlines.
	// Errors should be wrapped in a *SourceError so callers can decide
	// whether a retry makes sense.
	//
	// Example:
	//
	//	district, err := source.FetchDistrict(ctx, "6010")
	//	if err != nil {
	//	    return fmt.Errorf("fetch %s: %w", "6010", err)
	//	}
	FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error)
}
