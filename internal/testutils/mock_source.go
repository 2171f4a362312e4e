package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

var _ ports.ResultSource = (*MockSource)(nil)

// MockSource implements ports.ResultSource with scripted results, errors
// and delays for deterministic testing. It is safe for concurrent use and
// records how often each district was fetched.
type MockSource struct {
	name string

	mu      sync.Mutex
	results map[string]domain.DistrictResult
	errs    map[string]error
	delays  map[string]time.Duration
	calls   map[string]int
}

// NewMockSource creates an empty MockSource registered under name.
func NewMockSource(name string) *MockSource {
	return &MockSource{
		name:    name,
		results: make(map[string]domain.DistrictResult),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
		calls:   make(map[string]int),
	}
}

// WithResult scripts the result returned for the result's district.
func (m *MockSource) WithResult(r domain.DistrictResult) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.DistrictID] = r
	return m
}

// WithError scripts a failure for the district.
func (m *MockSource) WithError(districtID string, err error) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[districtID] = err
	return m
}

// WithDelay makes fetches of the district block for d or until the
// context is done.
func (m *MockSource) WithDelay(districtID string, d time.Duration) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[districtID] = d
	return m
}

// Name implements ports.ResultSource.
func (m *MockSource) Name() string { return m.name }

// FetchDistrict implements ports.ResultSource. Unscripted districts fail
// with ports.ErrNotFound wrapped in a *ports.SourceError.
func (m *MockSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	m.mu.Lock()
	m.calls[districtID]++
	delay := m.delays[districtID]
	err := m.errs[districtID]
	r, ok := m.results[districtID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return domain.DistrictResult{}, ports.NewSourceError(m.name, districtID, ctx.Err())
		case <-time.After(delay):
		}
	}
	if ctx.Err() != nil {
		return domain.DistrictResult{}, ports.NewSourceError(m.name, districtID, ctx.Err())
	}
	if err != nil {
		return domain.DistrictResult{}, err
	}
	if !ok {
		return domain.DistrictResult{}, ports.NewSourceError(m.name, districtID, ports.ErrNotFound)
	}
	return r.Clone(), nil
}

// Calls returns how many times the district was fetched.
func (m *MockSource) Calls(districtID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[districtID]
}
