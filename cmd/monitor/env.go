package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds process settings read from the environment. Subcommand flags
// override them.
type Env struct {
	ConfigPath      string        `env:"MONITOR_CONFIG" envDefault:"configs/election.yaml"`
	Addr            string        `env:"MONITOR_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"MONITOR_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint    string        `env:"MONITOR_OTEL_ENDPOINT"`
	HTTPTimeout     time.Duration `env:"MONITOR_HTTP_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"MONITOR_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// parseEnv loads Env from environment variables.
func parseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// parseLevel maps a level name to a slog level.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
