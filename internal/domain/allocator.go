package domain

import "context"

// Allocator defines the interface for converting a district's votes into
// elected candidates.
// Implementations must be pure: the same DistrictResult always yields the
// same Allocation, nothing is mutated and no I/O is performed.
type Allocator interface {
	// Allocate computes the elected candidates of the district.
	//
	// The method should handle edge cases such as:
	//   - Zero seats, no candidates or no positive-vote pacts (empty
	//     Allocation, no error)
	//   - Referential inconsistencies (error wrapping
	//     ErrInvalidDistrictResult)
	//   - Equal quotients (implementation-specific tie-breaking)
	//
	// Example:
	//
	//	alloc, err := allocator.Allocate(ctx, district)
	//	if err != nil {
	//	    return fmt.Errorf("district %s: %w", district.DistrictID, err)
	//	}
	Allocate(ctx context.Context, district DistrictResult) (Allocation, error)
}
