// Package httpapi exposes seat projections over HTTP: per-district
// candidates and allocations, national summaries under a scenario, gender
// parity and D'Hondt phenomena.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/mub05-dev/monitor-electoral/infrastructure/feeds"
	"github.com/mub05-dev/monitor-electoral/internal/application"
	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// SourceRegistry resolves result sources by name. An empty name selects
// the default source.
type SourceRegistry interface {
	Get(name string) (ports.ResultSource, error)
	Names() []string
}

// Config holds the collaborators of the HTTP server.
type Config struct {
	Election   *application.ElectionConfig
	Sources    SourceRegistry
	Service    *application.DistrictService
	Aggregator *application.NationalAggregator

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Metrics  ports.MetricsCollector
	Logger   *slog.Logger
}

// Server serves the monitor API.
type Server struct {
	cfg      *application.ElectionConfig
	sources  SourceRegistry
	service  *application.DistrictService
	agg      *application.NationalAggregator
	gatherer prometheus.Gatherer
	metrics  ports.MetricsCollector
	logger   *slog.Logger

	// runs collapses identical concurrent national runs.
	runs singleflight.Group
}

// NewServer validates cfg and builds a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Election == nil || cfg.Sources == nil || cfg.Service == nil || cfg.Aggregator == nil {
		return nil, fmt.Errorf("%w: http server needs election config, sources, service and aggregator",
			domain.ErrInvalidConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg.Election,
		sources:  cfg.Sources,
		service:  cfg.Service,
		agg:      cfg.Aggregator,
		gatherer: cfg.Gatherer,
		metrics:  cfg.Metrics,
		logger:   logger,
	}, nil
}

// Handler returns the routed handler wrapped with CORS and request
// logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /scenarios", s.handleScenarios)

	mux.HandleFunc("GET /districts/{id}/candidates", s.handleCandidates)
	mux.HandleFunc("GET /districts/{id}/allocation", s.handleAllocation)

	mux.HandleFunc("GET /national", s.handleNational)
	mux.HandleFunc("GET /stats/parity", s.handleParity)
	mux.HandleFunc("GET /stats/phenomena", s.handlePhenomena)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return CORS(WithLogging(s.logger, s.metrics, mux))
}

// source resolves the "source" query parameter.
func (s *Server) source(r *http.Request) (ports.ResultSource, error) {
	return s.sources.Get(r.URL.Query().Get("source"))
}

// districtID canonicalizes a district path value and checks it against
// the seat table.
func (s *Server) districtID(raw string) (string, error) {
	id, err := feeds.NormalizeDistrictID(raw)
	if err != nil {
		return "", err
	}
	if !s.cfg.HasDistrict(id) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownDistrict, id)
	}
	return id, nil
}

// national runs, or joins, the national projection for a source and
// scenario. The run is detached from the request so that a client going
// away does not fail the callers sharing it; per-district timeouts still
// bound it.
func (s *Server) national(ctx context.Context, src ports.ResultSource, scenario string) (*application.NationalResult, error) {
	key := src.Name() + "\x00" + scenario
	v, err, _ := s.runs.Do(key, func() (any, error) {
		return s.agg.AggregateDistricts(context.WithoutCancel(ctx), src, nil, scenario)
	})
	if err != nil {
		return nil, err
	}
	return v.(*application.NationalResult), nil
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, feeds.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownDistrict), errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDistrictResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case ports.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", code, "error", err)
	}
	WriteError(w, code, err.Error())
}
