package feeds

import (
	"context"
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// timeoutSource bounds every fetch attempt.
type timeoutSource struct {
	wrapped
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces a per-attempt
// timeout. Placed inside RetryMiddleware, every retry gets a fresh budget.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.ResultSource) ports.ResultSource {
		return &timeoutSource{wrapped: wrapped{next}, timeout: timeout}
	}
}

// FetchDistrict executes the fetch with a timeout context.
func (t *timeoutSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.FetchDistrict(ctx, districtID)
}
