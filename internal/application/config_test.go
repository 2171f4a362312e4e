package application

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

const minimalConfig = `
version: "1.0.0"
metadata:
  name: "test-election"
districts:
  - id: "6010"
    seats: 8
sources:
  default: file
  file:
    dir: testdata
`

const fullConfig = `
version: "1.2.0"
metadata:
  name: "diputados-2025"
  description: "Chamber of deputies"
default_seats: 3
districts:
  - id: "6001"
    name: "Distrito 1"
    seats: 3
  - id: "6010"
    name: "Distrito 10"
    seats: 8
pacts:
  - id: A
    name: "Unidad por Chile"
    featured: true
  - id: B
    name: "Verdes"
  - id: J
    name: "Cambio por Chile"
    featured: true
  - id: K
    name: "Chile Grande y Unido"
    featured: true
parties:
  - id: RN
    name: "Renovacion Nacional"
visual_order: [A, B, K, J]
scenarios:
  - name: derecha_unida
    label: "Right united"
    new_id: JK
    new_name: "Derecha Unida"
    merge_ids: [J, K]
    order_as: K
allocation:
  tie_break: lexical
aggregation:
  concurrency: 4
  district_timeout_ms: 5000
parity:
  female_tags: ["F"]
  male_tags: ["M"]
  incentive_per_woman: 0
phenomena:
  top: 5
sources:
  default: live
  live:
    url_template: "https://example.org/feeds/{district}.xml"
    metadata_url: "https://example.org/feeds/catalogue.json"
    user_agent: "monitor"
  simulation:
    roster_path: roster.csv
    poll_path: poll.json
  resilience:
    timeout_ms: 1000
    max_retries: 2
    initial_wait_ms: 50
    max_wait_ms: 500
    rate_per_second: 10
    burst: 5
    breaker_failures: 3
    breaker_cooldown_ms: 1000
`

// TestElectionConfig_UnmarshalYAML tests the YAML unmarshaling of
// ElectionConfig. It verifies field mapping only; validation and defaults
// are covered by the loader tests.
func TestElectionConfig_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		verify  func(t *testing.T, config *ElectionConfig)
	}{
		{
			name: "valid minimal config",
			yaml: minimalConfig,
			verify: func(t *testing.T, config *ElectionConfig) {
				assert.Equal(t, "1.0.0", config.Version)
				assert.Equal(t, "test-election", config.Metadata.Name)
				require.Len(t, config.Districts, 1)
				assert.Equal(t, "6010", config.Districts[0].ID)
				assert.Equal(t, 8, config.Districts[0].Seats)
				assert.Equal(t, "file", config.Sources.Default)
				assert.Nil(t, config.Sources.Live)
			},
		},
		{
			name: "valid full config",
			yaml: fullConfig,
			verify: func(t *testing.T, config *ElectionConfig) {
				assert.Equal(t, 3, config.DefaultSeats)
				assert.Len(t, config.Pacts, 4)
				assert.Equal(t, []string{"A", "B", "K", "J"}, config.VisualOrder)
				require.Len(t, config.Scenarios, 1)
				assert.Equal(t, []string{"J", "K"}, config.Scenarios[0].MergeIDs)
				assert.Equal(t, "lexical", config.Allocation.TieBreak)
				require.NotNil(t, config.Parity.IncentivePerWoman)
				assert.Zero(t, *config.Parity.IncentivePerWoman)
				require.NotNil(t, config.Sources.Live)
				assert.Equal(t, 2, config.Sources.Resilience.MaxRetries)
			},
		},
		{
			name:    "invalid YAML syntax",
			yaml:    "version: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config ElectionConfig
			err := yaml.Unmarshal([]byte(tt.yaml), &config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.verify != nil {
				tt.verify(t, &config)
			}
		})
	}
}

func loadString(t *testing.T, doc string) (*ElectionConfig, error) {
	t.Helper()
	loader, err := NewConfigLoader()
	require.NoError(t, err)
	return loader.LoadFromReader(strings.NewReader(doc))
}

// TestConfigLoader_Defaults verifies that omitted optional fields are
// filled in after loading.
func TestConfigLoader_Defaults(t *testing.T) {
	// Given a configuration with only required fields
	config, err := loadString(t, minimalConfig)

	// Then every default is applied
	require.NoError(t, err)
	assert.Equal(t, DefaultSeats, config.DefaultSeats)
	assert.Equal(t, DefaultTieBreak, config.Allocation.TieBreak)
	assert.Equal(t, DefaultConcurrency, config.Aggregation.Concurrency)
	assert.Equal(t, DefaultTopN, config.Phenomena.Top)
	assert.Equal(t, []string{"M", "F"}, config.Parity.FemaleTags)
	assert.Equal(t, []string{"H"}, config.Parity.MaleTags)
	require.NotNil(t, config.Parity.IncentivePerWoman)
	assert.Equal(t, float64(domain.DefaultIncentivePerWoman), *config.Parity.IncentivePerWoman)
	assert.Equal(t, 200, config.Sources.Resilience.InitialWaitMs)
	assert.Equal(t, 2000, config.Sources.Resilience.MaxWaitMs)
	assert.Equal(t, 1, config.Sources.Resilience.Burst)
	assert.Zero(t, config.DistrictTimeout())
}

func TestConfigLoader_FullConfig(t *testing.T) {
	config, err := loadString(t, fullConfig)
	require.NoError(t, err)

	assert.Equal(t, DefaultMatchCutoff, config.Sources.Simulation.MatchCutoff)
	assert.Equal(t, []string{"6001", "6010"}, config.DistrictIDs())
	assert.Equal(t, map[string]int{"6001": 3, "6010": 8}, config.SeatTable())
	assert.True(t, config.HasDistrict("6010"))
	assert.False(t, config.HasDistrict("6099"))
	assert.Equal(t, "Verdes", config.PactNames()["B"])
	assert.Equal(t, "Renovacion Nacional", config.PartyNames()["RN"])
	assert.Equal(t, map[string]bool{"A": true, "J": true, "K": true}, config.FeaturedPacts())
	assert.Equal(t, int64(5000), config.DistrictTimeout().Milliseconds())

	// An explicit zero incentive is kept rather than defaulted.
	policy := config.ParityPolicy()
	assert.Zero(t, policy.IncentivePerWoman)
	assert.Equal(t, domain.GenderMale, policy.Classify("m"))

	set, err := config.ScenarioSet()
	require.NoError(t, err)
	s, ok := set.Lookup("derecha_unida")
	require.True(t, ok)
	assert.Equal(t, "K", s.OrderKey())

	order := config.PactOrder().WithScenario(s)
	assert.Equal(t, order.Rank("K"), order.Rank("JK"))
	assert.Less(t, order.Rank("B"), order.Rank("JK"))
}

// TestConfigLoader_Validation tests that struct and semantic validation
// reject broken configurations with a descriptive message.
func TestConfigLoader_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc string) string
		errMsg string
	}{
		{
			name:   "bad semver",
			mutate: func(doc string) string { return strings.Replace(doc, `"1.2.0"`, `"v1"`, 1) },
			errMsg: "semver",
		},
		{
			name:   "unknown field",
			mutate: func(doc string) string { return strings.Replace(doc, "default_seats: 3", "default_seat: 3", 1) },
			errMsg: "field default_seat not found",
		},
		{
			name:   "lower case pact id",
			mutate: func(doc string) string { return strings.Replace(doc, "  - id: B\n", "  - id: b\n", 1) },
			errMsg: "pactid",
		},
		{
			name:   "duplicate district",
			mutate: func(doc string) string { return strings.Replace(doc, `id: "6001"`, `id: "6010"`, 1) },
			errMsg: `duplicate district "6010"`,
		},
		{
			name:   "duplicate pact",
			mutate: func(doc string) string { return strings.Replace(doc, "  - id: B\n", "  - id: A\n", 1) },
			errMsg: `duplicate pact "A"`,
		},
		{
			name:   "visual order repeats a pact",
			mutate: func(doc string) string { return strings.Replace(doc, "[A, B, K, J]", "[A, B, K, A]", 1) },
			errMsg: "visual_order lists pact",
		},
		{
			name:   "scenario merges its own id",
			mutate: func(doc string) string { return strings.Replace(doc, "new_id: JK", "new_id: J", 1) },
			errMsg: "cannot also be merged",
		},
		{
			name:   "unknown tie break",
			mutate: func(doc string) string { return strings.Replace(doc, "tie_break: lexical", "tie_break: random", 1) },
			errMsg: "oneof",
		},
		{
			name:   "url template without placeholder",
			mutate: func(doc string) string { return strings.Replace(doc, "{district}.xml", "all.xml", 1) },
			errMsg: "urltemplate",
		},
		{
			name:   "default source not configured",
			mutate: func(doc string) string { return strings.Replace(doc, "default: live", "default: file", 1) },
			errMsg: "default source file is not configured",
		},
		{
			name:   "backoff cap below base",
			mutate: func(doc string) string { return strings.Replace(doc, "max_wait_ms: 500", "max_wait_ms: 10", 1) },
			errMsg: "max_wait_ms (10) is below initial_wait_ms (50)",
		},
		{
			name:   "match cutoff above one",
			mutate: func(doc string) string { return strings.Replace(doc, "poll_path: poll.json", "poll_path: poll.json\n    match_cutoff: 1.5", 1) },
			errMsg: "MatchCutoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.mutate(fullConfig))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigLoader_ValidationErrorsWrapSentinel(t *testing.T) {
	_, err := loadString(t, strings.Replace(fullConfig, "[A, B, K, J]", "[A, B, K, A]", 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))

	var cerr *ports.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "visual_order", cerr.ConfigKey)
}

// TestConfigLoader_SemanticErrorKeys verifies that semantic failures name
// the configuration key at fault.
func TestConfigLoader_SemanticErrorKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc string) string
		key    string
	}{
		{"duplicate district", func(doc string) string { return strings.Replace(doc, `id: "6001"`, `id: "6010"`, 1) }, "districts"},
		{"duplicate pact", func(doc string) string { return strings.Replace(doc, "  - id: B\n", "  - id: A\n", 1) }, "pacts"},
		{"scenario definition", func(doc string) string { return strings.Replace(doc, "new_id: JK", "new_id: J", 1) }, "scenarios"},
		{"default source", func(doc string) string { return strings.Replace(doc, "default: live", "default: file", 1) }, "sources.default"},
		{"backoff", func(doc string) string { return strings.Replace(doc, "max_wait_ms: 500", "max_wait_ms: 10", 1) }, "sources.resilience.max_wait_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.mutate(fullConfig))
			require.Error(t, err)
			var cerr *ports.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.ConfigKey)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

// TestConfigLoader_UnknownMergePactWarns verifies that a scenario fusing a
// pact missing from the catalogue loads, with a warning.
func TestConfigLoader_UnknownMergePactWarns(t *testing.T) {
	var buf bytes.Buffer
	loader, err := NewConfigLoader(WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, err)

	config, err := loader.LoadFromReader(strings.NewReader(strings.Replace(fullConfig, "[J, K]", "[J, Z]", 1)))
	require.NoError(t, err)

	assert.Equal(t, []string{"J", "Z"}, config.Scenarios[0].MergeIDs)
	assert.Contains(t, buf.String(), "scenario merges pact missing from the catalogue")
	assert.Contains(t, buf.String(), `"pact":"Z"`)
	assert.Contains(t, buf.String(), `"scenario":"derecha_unida"`)
}

// TestConfigLoader_Cache verifies that semantically identical documents
// share one cached configuration and that ClearCache drops it.
func TestConfigLoader_Cache(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	// Given the same configuration with different formatting
	first, err := loader.LoadFromReader(strings.NewReader(minimalConfig))
	require.NoError(t, err)
	reformatted := strings.ReplaceAll(minimalConfig, `"test-election"`, `test-election`) + "\n# trailing comment\n"
	second, err := loader.LoadFromReader(strings.NewReader(reformatted))
	require.NoError(t, err)

	// Then both loads return the cached instance
	assert.Same(t, first, second)

	// When the cache is cleared
	loader.ClearCache()
	third, err := loader.LoadFromReader(strings.NewReader(minimalConfig))
	require.NoError(t, err)

	// Then a fresh instance is built
	assert.NotSame(t, first, third)
	assert.Equal(t, first, third)
}

func TestConfigLoader_ConcurrentLoads(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	const workers = 16
	results := make([]*ElectionConfig, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := loader.LoadFromReader(strings.NewReader(fullConfig))
			assert.NoError(t, err)
			results[i] = cfg
		}()
	}
	wg.Wait()

	for _, cfg := range results[1:] {
		assert.Same(t, results[0], cfg)
	}
}

func TestConfigLoader_LoadFromFile(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	t.Run("bundled election file", func(t *testing.T) {
		config, err := loader.LoadFromFile("../../configs/election.yaml")
		require.NoError(t, err)

		assert.Len(t, config.Districts, 28)
		total := 0
		for _, seats := range config.SeatTable() {
			total += seats
		}
		assert.Equal(t, 155, total)

		set, err := config.ScenarioSet()
		require.NoError(t, err)
		assert.Equal(t, []string{"derecha_unida", "izquierda_unida"}, set.Names())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.LoadFromFile("does-not-exist.yaml")
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrConfigNotFound)
		var cerr *ports.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "does-not-exist.yaml", cerr.ConfigKey)
	})
}

func TestValidatePactID(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	tests := []struct {
		id    string
		valid bool
	}{
		{"A", true},
		{"JK", true},
		{"IND_12", true},
		{"", false},
		{"a", false},
		{"A-B", false},
		{"ABCDEFGHIJKLMNOPQ", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := loader.validator.Var(tt.id, "pactid")
			assert.Equal(t, tt.valid, err == nil)
		})
	}
}

func TestValidateURLTemplate(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	tests := []struct {
		name  string
		tmpl  string
		valid bool
	}{
		{"https with placeholder", "https://example.org/{district}.xml", true},
		{"placeholder in query", "http://example.org/feed?d={district}", true},
		{"missing placeholder", "https://example.org/feed.xml", false},
		{"relative", "/feeds/{district}.xml", false},
		{"ftp scheme", "ftp://example.org/{district}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.validator.Var(tt.tmpl, "urltemplate")
			assert.Equal(t, tt.valid, err == nil)
		})
	}
}
