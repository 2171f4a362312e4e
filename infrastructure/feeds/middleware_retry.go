package feeds

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// retrySource retries transient failures with exponential backoff.
type retrySource struct {
	wrapped
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries failed fetches with
// jittered exponential backoff. Only failures ports.IsRetryable accepts are
// retried; a missing district or a malformed feed fails immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next ports.ResultSource) ports.ResultSource {
		return &retrySource{
			wrapped:    wrapped{next},
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// FetchDistrict executes the fetch with automatic retries. It stops early
// when the circuit is open or the context is done.
func (r *retrySource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		result, err := r.next.FetchDistrict(ctx, districtID)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil || !ports.IsRetryable(err) {
			return domain.DistrictResult{}, err
		}

		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return domain.DistrictResult{}, ctx.Err()
		case <-time.After(r.delay(attempt, err)):
		}
	}

	return domain.DistrictResult{}, fmt.Errorf("fetch failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// delay returns the backoff before the next attempt. A Retry-After hint
// from the feed wins over the computed delay; both are capped at maxDelay.
func (r *retrySource) delay(attempt int, err error) time.Duration {
	attempt = min(max(attempt, 0), 30)
	delay := r.baseDelay * time.Duration(1<<attempt)

	// ±25% jitter.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	var serr *ports.SourceError
	if errors.As(err, &serr) && serr.RetryAfter != nil && *serr.RetryAfter > delay {
		delay = *serr.RetryAfter
	}

	return min(delay, r.maxDelay)
}
