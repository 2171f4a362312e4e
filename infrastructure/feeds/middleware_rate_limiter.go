package feeds

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// rateLimitedSource paces fetches with a token bucket so a national run
// does not hammer the feed publisher.
type rateLimitedSource struct {
	wrapped
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces rate limiting using
// a token bucket algorithm. The limit parameter sets fetches per second,
// while burst allows temporary spikes above the sustained rate.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.ResultSource) ports.ResultSource {
		return &rateLimitedSource{wrapped: wrapped{next}, limiter: limiter}
	}
}

// FetchDistrict waits for a token before forwarding the fetch.
func (r *rateLimitedSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return domain.DistrictResult{}, fmt.Errorf("rate limit: %w", ctx.Err())
		}
		// The wait would outlive the deadline.
		return domain.DistrictResult{}, ports.NewSourceError(r.Name(), districtID, ports.ErrRateLimited)
	}
	return r.next.FetchDistrict(ctx, districtID)
}
