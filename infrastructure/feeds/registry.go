package feeds

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mub05-dev/monitor-electoral/internal/application"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// ErrUnknownSource is returned when a source name is not registered.
var ErrUnknownSource = errors.New("unknown source")

// Registry holds the configured result sources by name.
// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sources     map[string]ports.ResultSource
	defaultName string
}

// NewRegistry creates an empty registry whose Get("") resolves to
// defaultName.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		sources:     make(map[string]ports.ResultSource),
		defaultName: defaultName,
	}
}

// Register adds a source under its Name. Registering a name twice is an
// error.
func (r *Registry) Register(src ports.ResultSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %s already registered", name)
	}
	r.sources[name] = src
	return nil
}

// Get returns the source registered under name, or the default source
// when name is empty.
func (r *Registry) Get(name string) (ports.ResultSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return src, nil
}

// Default returns the name of the default source.
func (r *Registry) Default() string { return r.defaultName }

// Names returns the registered source names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewNormalizerFromConfig builds the Normalizer shared by every source.
func NewNormalizerFromConfig(cfg *application.ElectionConfig, photoBaseURL string) *Normalizer {
	return NewNormalizer(NormalizerOptions{
		Seats:        cfg.SeatTable(),
		DefaultSeats: cfg.DefaultSeats,
		PactNames:    cfg.PactNames(),
		PartyNames:   cfg.PartyNames(),
		PhotoBaseURL: photoBaseURL,
	})
}

// ResilienceMiddleware returns the middleware stack applied around every
// configured source, outermost first: tracing, metrics, retry, circuit
// breaker, rate limit, timeout.
func ResilienceMiddleware(cfg application.ResilienceConfig, collector ports.MetricsCollector) []Middleware {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	middleware := []Middleware{TracingMiddleware()}
	if collector != nil {
		middleware = append(middleware, MetricsMiddleware(collector))
	}
	if cfg.MaxRetries > 0 {
		middleware = append(middleware, RetryMiddleware(cfg.MaxRetries, ms(cfg.InitialWaitMs), ms(cfg.MaxWaitMs)))
	}
	if cfg.BreakerFailures > 0 {
		middleware = append(middleware, CircuitBreakerMiddleware(cfg.BreakerFailures, ms(cfg.BreakerCooldownMs), collector))
	}
	if cfg.RatePerSecond > 0 {
		middleware = append(middleware, RateLimitMiddleware(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1)))
	}
	if cfg.TimeoutMs > 0 {
		middleware = append(middleware, TimeoutMiddleware(ms(cfg.TimeoutMs)))
	}
	return middleware
}

// NewRegistryFromConfig builds every source the configuration declares,
// each wrapped with its own resilience stack so that one failing feed
// cannot open the circuit of another.
func NewRegistryFromConfig(cfg *application.ElectionConfig, collector ports.MetricsCollector, client *http.Client) (*Registry, error) {
	reg := NewRegistry(cfg.Sources.Default)
	add := func(src ports.ResultSource) error {
		return reg.Register(Chain(src, ResilienceMiddleware(cfg.Sources.Resilience, collector)...))
	}

	if live := cfg.Sources.Live; live != nil {
		src := NewLiveSource(LiveSourceOptions{
			VotesURLTemplate: live.URLTemplate,
			MetadataURL:      live.MetadataURL,
			UserAgent:        live.UserAgent,
			Client:           client,
		}, NewNormalizerFromConfig(cfg, live.PhotoBaseURL))
		if err := add(src); err != nil {
			return nil, err
		}
	}

	if file := cfg.Sources.File; file != nil {
		if err := add(NewFileSource(file.Dir, NewNormalizerFromConfig(cfg, file.PhotoBaseURL))); err != nil {
			return nil, err
		}
	}

	if sim := cfg.Sources.Simulation; sim != nil {
		src, err := LoadPollSource(sim.RosterPath, sim.PollPath, sim.MatchCutoff,
			NewNormalizerFromConfig(cfg, sim.PhotoBaseURL))
		if err != nil {
			return nil, fmt.Errorf("simulation source: %w", err)
		}
		if err := add(src); err != nil {
			return nil, err
		}
	}

	if _, err := reg.Get(""); err != nil {
		return nil, fmt.Errorf("default source: %w", err)
	}
	return reg, nil
}
