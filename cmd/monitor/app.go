package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mub05-dev/monitor-electoral/infrastructure/allocation"
	"github.com/mub05-dev/monitor-electoral/infrastructure/feeds"
	"github.com/mub05-dev/monitor-electoral/infrastructure/httpapi"
	"github.com/mub05-dev/monitor-electoral/infrastructure/middleware"
	"github.com/mub05-dev/monitor-electoral/internal/application"
)

// app is the wired monitor: configuration, sources and services.
type app struct {
	cfg        *application.ElectionConfig
	registry   *prometheus.Registry
	metrics    *middleware.PrometheusMetrics
	sources    *feeds.Registry
	service    *application.DistrictService
	aggregator *application.NationalAggregator
	logger     *slog.Logger
}

// loadConfig reads and validates the election file.
func loadConfig(path string, logger *slog.Logger) (*application.ElectionConfig, error) {
	loader, err := application.NewConfigLoader(application.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// newApp wires every component from the election file at configPath.
func newApp(configPath string, e Env, logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewPrometheusMetrics(reg)

	sources, err := feeds.NewRegistryFromConfig(cfg, metrics, &http.Client{Timeout: e.HTTPTimeout})
	if err != nil {
		return nil, err
	}

	alloc, err := allocation.NewDHondtAllocator(allocation.Config{
		TieBreak: allocation.TieBreak(cfg.Allocation.TieBreak),
	})
	if err != nil {
		return nil, err
	}

	opts := []application.Option{
		application.WithLogger(logger),
		application.WithMetrics(metrics),
	}
	service, err := application.NewDistrictService(cfg, alloc, opts...)
	if err != nil {
		return nil, err
	}
	aggregator, err := application.NewNationalAggregator(cfg, service, opts...)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		registry:   reg,
		metrics:    metrics,
		sources:    sources,
		service:    service,
		aggregator: aggregator,
		logger:     logger,
	}, nil
}

// handler builds the HTTP API over the wired components.
func (a *app) handler() (http.Handler, error) {
	srv, err := httpapi.NewServer(httpapi.Config{
		Election:   a.cfg,
		Sources:    a.sources,
		Service:    a.service,
		Aggregator: a.aggregator,
		Gatherer:   a.registry,
		Metrics:    a.metrics,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}
	return srv.Handler(), nil
}
