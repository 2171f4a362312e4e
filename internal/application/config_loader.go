package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// ConfigLoader provides YAML parsing, validation, and caching for election
// configurations.
// Use ConfigLoader to load configurations from files or readers while
// benefiting from SHA256-based caching and strict validation.
type ConfigLoader struct {
	// validator performs struct field validation and the custom rules
	// registered by RegisterElectionValidators.
	validator *validator.Validate
	// cache stores validated configurations indexed by the SHA256 hash of
	// their normalized YAML.
	// WARNING: Cached configurations MUST NOT be mutated.
	cache   map[string]*ElectionConfig
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when multiple goroutines load the
	// same configuration simultaneously.
	sf singleflight.Group

	logger *slog.Logger
}

// NewConfigLoader creates a loader with the election validators
// registered and an empty cache. Only WithLogger applies to the loader.
// NewConfigLoader returns an error if validator registration fails.
func NewConfigLoader(opts ...Option) (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*ElectionConfig),
		logger:    buildOptions(opts).logger,
	}, nil
}

// load is the common implementation for loading configurations from byte
// data. Defaults are applied before hashing so that a file spelling out a
// default value and one omitting it share a cache entry.
func (cl *ConfigLoader) load(data []byte) (*ElectionConfig, error) {
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.applyDefaults()

	hash, err := cl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.getCached(hash); ok {
			return cached, nil
		}

		if err := cl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
		}

		cl.cacheConfig(hash, config)
		return config, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*ElectionConfig), nil
}

// LoadFromFile loads and validates an election configuration from a YAML
// file.
// WARNING: The returned configuration is shared with the cache. Callers
// MUST NOT mutate it.
func (cl *ConfigLoader) LoadFromFile(path string) (*ElectionConfig, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ports.NewConfigError(cleanPath, ports.ErrConfigNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(data)
}

// LoadFromReader loads and validates an election configuration from an
// io.Reader, applying the same caching and validation as LoadFromFile.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*ElectionConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(data)
}

// parseYAML uses strict decoding so that misspelled keys are reported
// instead of silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*ElectionConfig, error) {
	var config ElectionConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

func (cl *ConfigLoader) validateConfig(config *ElectionConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	for _, w := range unknownMergePacts(config) {
		cl.logger.Warn("scenario merges pact missing from the catalogue",
			"scenario", w.scenario,
			"pact", w.pact,
		)
	}
	return nil
}

type mergeWarning struct {
	scenario string
	pact     string
}

// unknownMergePacts lists the merge_ids that name no configured pact. Such
// scenarios stay valid: the pact may only appear in a live feed, and when it
// is absent it contributes no votes or seats.
func unknownMergePacts(config *ElectionConfig) []mergeWarning {
	if len(config.Pacts) == 0 {
		return nil
	}
	pacts := make(map[string]struct{}, len(config.Pacts))
	for _, p := range config.Pacts {
		pacts[p.ID] = struct{}{}
	}
	var out []mergeWarning
	for _, s := range config.Scenarios {
		for _, id := range s.MergeIDs {
			if _, ok := pacts[id]; !ok {
				out = append(out, mergeWarning{scenario: s.Name, pact: id})
			}
		}
	}
	return out
}

// validateSemantics checks the rules that struct tags cannot express:
// uniqueness of identifiers, references between sections, and that the
// default source is actually configured. Failures are *ports.ConfigError
// values naming the offending key.
func validateSemantics(config *ElectionConfig) error {
	districts := make(map[string]struct{}, len(config.Districts))
	for _, d := range config.Districts {
		if _, dup := districts[d.ID]; dup {
			return ports.NewConfigError("districts", fmt.Errorf("duplicate district %q", d.ID))
		}
		districts[d.ID] = struct{}{}
	}

	pacts := make(map[string]struct{}, len(config.Pacts))
	for _, p := range config.Pacts {
		if _, dup := pacts[p.ID]; dup {
			return ports.NewConfigError("pacts", fmt.Errorf("duplicate pact %q", p.ID))
		}
		pacts[p.ID] = struct{}{}
	}

	parties := make(map[string]struct{}, len(config.Parties))
	for _, p := range config.Parties {
		if _, dup := parties[p.ID]; dup {
			return ports.NewConfigError("parties", fmt.Errorf("duplicate party %q", p.ID))
		}
		parties[p.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(config.VisualOrder))
	for _, id := range config.VisualOrder {
		if _, dup := seen[id]; dup {
			return ports.NewConfigError("visual_order", fmt.Errorf("visual_order lists pact %q twice", id))
		}
		seen[id] = struct{}{}
	}

	for _, s := range config.Scenarios {
		if s.OrderAs != "" && len(config.VisualOrder) > 0 {
			if _, ok := seen[s.OrderAs]; !ok {
				return ports.NewConfigError("scenarios."+s.Name+".order_as",
					fmt.Errorf("scenario %s orders as pact missing from visual_order: %s", s.Name, s.OrderAs))
			}
		}
	}
	if _, err := config.ScenarioSet(); err != nil {
		return ports.NewConfigError("scenarios", err)
	}

	switch config.Sources.Default {
	case "live":
		if config.Sources.Live == nil {
			return ports.NewConfigError("sources.default", errors.New("default source live is not configured"))
		}
	case "file":
		if config.Sources.File == nil {
			return ports.NewConfigError("sources.default", errors.New("default source file is not configured"))
		}
	case "simulation":
		if config.Sources.Simulation == nil {
			return ports.NewConfigError("sources.default", errors.New("default source simulation is not configured"))
		}
	}

	r := config.Sources.Resilience
	if r.MaxWaitMs < r.InitialWaitMs {
		return ports.NewConfigError("sources.resilience.max_wait_ms",
			fmt.Errorf("resilience max_wait_ms (%d) is below initial_wait_ms (%d)", r.MaxWaitMs, r.InitialWaitMs))
	}

	return nil
}

// calculateConfigHash computes the SHA256 hash of the re-encoded
// configuration so that formatting differences do not defeat the cache.
func (cl *ConfigLoader) calculateConfigHash(config *ElectionConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ConfigLoader) getCached(hash string) (*ElectionConfig, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	config, ok := cl.cache[hash]
	return config, ok
}

func (cl *ConfigLoader) cacheConfig(hash string, config *ElectionConfig) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = config
}

// ClearCache removes all cached configurations, forcing subsequent loads
// to validate from source.
// ClearCache is safe for concurrent use.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*ElectionConfig)
}

// registerCustomValidators registers semantic version validation and the
// election-specific rules with the validator instance.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := RegisterElectionValidators(v); err != nil {
		return fmt.Errorf("failed to register election validators: %w", err)
	}

	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}
