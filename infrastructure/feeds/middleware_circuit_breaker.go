package feeds

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a fetch
// without reaching the feed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed lets every fetch through.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects fetches until the cooldown expires.
	StateOpen

	// StateHalfOpen lets fetches through to probe recovery; the first
	// result closes or reopens the circuit.
	StateHalfOpen
)

// String returns the state name used in logs and metric labels.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after a number of consecutive transient failures
// and rejects calls until a cooldown has elapsed.
// The lock is never held while the protected call runs, so concurrent
// district workers are not serialized by the breaker.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
	now              func() time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after maxFailures
// consecutive failures and stays open for cooldownDuration.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      maxFailures,
		cooldownDuration: cooldownDuration,
		now:              time.Now,
	}
}

// Call executes fn through the circuit breaker. It returns ErrCircuitOpen
// without calling fn while the circuit is open. Only errors accepted by
// ports.IsRetryable count as failures; a missing district says nothing
// about the health of the feed.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) < cb.cooldownDuration {
			return false
		}
		cb.state = StateHalfOpen
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !ports.IsRetryable(err) {
		cb.failureCount = 0
		cb.state = StateClosed
		return
	}

	cb.failureCount++
	cb.lastFailure = cb.now()
	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// GetState returns the current circuit breaker state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// circuitBreakerSource guards a source with a CircuitBreaker.
type circuitBreakerSource struct {
	wrapped
	cb        *CircuitBreaker
	collector ports.MetricsCollector
}

// CircuitBreakerMiddleware creates middleware that implements the circuit
// breaker pattern. When collector is not nil the circuit state is exported
// as the source_circuit_state gauge (0 closed, 1 open, 2 half open).
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration, collector ports.MetricsCollector) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next ports.ResultSource) ports.ResultSource {
		return &circuitBreakerSource{wrapped: wrapped{next}, cb: cb, collector: collector}
	}
}

// FetchDistrict executes the fetch through the circuit breaker.
func (c *circuitBreakerSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	var result domain.DistrictResult
	err := c.cb.Call(func() error {
		var err error
		result, err = c.next.FetchDistrict(ctx, districtID)
		return err
	})

	if c.collector != nil {
		c.collector.RecordGauge(MetricCircuitState, float64(c.cb.GetState()),
			map[string]string{"source": c.Name()})
	}
	return result, err
}
