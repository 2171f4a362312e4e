// Package application provides the orchestration of the electoral
// monitor: configuration loading, district projection, and national
// aggregation.
package application

import (
	"time"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

// Defaults applied to optional configuration fields.
const (
	DefaultSeats       = 5
	DefaultConcurrency = 14
	DefaultTieBreak    = "input_order"
	DefaultMatchCutoff = 0.8
	DefaultTopN        = 10
)

// ElectionConfig is the static reference data of an election together
// with the knobs of the seat projection, and serves as the primary
// configuration entry point for the system.
// It is loaded once at start and passed explicitly to the components that
// need it; nothing reads it through globals.
type ElectionConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the election.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// DefaultSeats is used for districts missing from the seat table.
	DefaultSeats int `yaml:"default_seats" validate:"min=0,max=200"`
	// Districts is the seat table, one entry per electoral district.
	Districts []DistrictConfig `yaml:"districts" validate:"required,min=1,dive"`
	// Pacts holds coalition display names and featured flags.
	Pacts []PactConfig `yaml:"pacts" validate:"dive"`
	// Parties holds party display names keyed by abbreviation.
	Parties []PartyConfig `yaml:"parties" validate:"dive"`
	// VisualOrder lists pact ids from left to right for seat layouts.
	VisualOrder []string `yaml:"visual_order" validate:"dive,pactid"`
	// Scenarios are the coalition merges users can select by name.
	Scenarios []ScenarioConfig `yaml:"scenarios" validate:"dive"`
	// Allocation configures the seat allocator.
	Allocation AllocationConfig `yaml:"allocation"`
	// Aggregation configures the national fan-out.
	Aggregation AggregationConfig `yaml:"aggregation"`
	// Parity configures gender tags and the women incentive.
	Parity ParityConfig `yaml:"parity"`
	// Phenomena configures the dragged/cut report.
	Phenomena PhenomenaConfig `yaml:"phenomena"`
	// Sources configures the vote feeds.
	Sources SourcesConfig `yaml:"sources" validate:"required"`
}

// Metadata provides descriptive information about an election.
type Metadata struct {
	// Name is the human-readable identifier of the election.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains which contest and data the file covers.
	Description string `yaml:"description" validate:"max=1000"`
}

// DistrictConfig is one row of the seat table.
type DistrictConfig struct {
	// ID is the canonical district identifier, such as "6010".
	ID string `yaml:"id" validate:"required,numeric,min=1,max=10"`
	// Name is the display name of the district.
	Name string `yaml:"name" validate:"max=255"`
	// Seats is the number of seats the district elects.
	Seats int `yaml:"seats" validate:"min=0,max=200"`
}

// PactConfig is the reference entry of one coalition.
type PactConfig struct {
	ID   string `yaml:"id" validate:"required,pactid"`
	Name string `yaml:"name" validate:"required,max=255"`
	// Featured pacts are always shown individually in national summaries.
	Featured bool `yaml:"featured"`
}

// PartyConfig maps a party abbreviation to its display name.
type PartyConfig struct {
	ID   string `yaml:"id" validate:"required,max=50"`
	Name string `yaml:"name" validate:"required,max=255"`
}

// ScenarioConfig defines a what-if coalition merge.
type ScenarioConfig struct {
	Name     string   `yaml:"name" validate:"required,max=100"`
	Label    string   `yaml:"label" validate:"max=255"`
	NewID    string   `yaml:"new_id" validate:"required,pactid"`
	NewName  string   `yaml:"new_name" validate:"required,max=255"`
	MergeIDs []string `yaml:"merge_ids" validate:"required,min=1,dive,pactid"`
	OrderAs  string   `yaml:"order_as" validate:"omitempty,pactid"`
}

// AllocationConfig selects the allocator behaviour.
type AllocationConfig struct {
	// TieBreak is "input_order" (default) or "lexical".
	TieBreak string `yaml:"tie_break" validate:"omitempty,oneof=input_order lexical"`
}

// AggregationConfig bounds the national fan-out.
type AggregationConfig struct {
	// Concurrency is the number of districts processed at once.
	Concurrency int `yaml:"concurrency" validate:"omitempty,min=1,max=256"`
	// DistrictTimeoutMs bounds the work of one district, fetch included.
	// Zero disables the bound.
	DistrictTimeoutMs int `yaml:"district_timeout_ms" validate:"omitempty,min=1,max=600000"`
}

// ParityConfig maps raw gender tags and sets the women incentive.
type ParityConfig struct {
	FemaleTags        []string `yaml:"female_tags" validate:"dive,required,max=10"`
	MaleTags          []string `yaml:"male_tags" validate:"dive,required,max=10"`
	IncentivePerWoman *float64 `yaml:"incentive_per_woman" validate:"omitempty,min=0"`
}

// PhenomenaConfig bounds the national dragged/cut listings.
type PhenomenaConfig struct {
	Top int `yaml:"top" validate:"omitempty,min=1,max=1000"`
}

// SourcesConfig declares the vote feeds and how they are called.
type SourcesConfig struct {
	// Default names the source used when a request does not pick one.
	Default string `yaml:"default" validate:"required,oneof=live file simulation"`
	// Live reads the published district feeds over HTTP.
	Live *LiveSourceConfig `yaml:"live"`
	// File reads district feeds from a directory.
	File *FileSourceConfig `yaml:"file"`
	// Simulation builds districts from a candidate roster and a poll.
	Simulation *SimulationSourceConfig `yaml:"simulation"`
	// Resilience wraps every source.
	Resilience ResilienceConfig `yaml:"resilience"`
}

// LiveSourceConfig configures the HTTP feeds: an XML vote count per
// district and a JSON candidate catalogue.
type LiveSourceConfig struct {
	// URLTemplate contains "{district}" where the district id goes.
	URLTemplate string `yaml:"url_template" validate:"required,urltemplate"`
	// MetadataURL points to the JSON catalogue of candidates and pacts.
	MetadataURL string `yaml:"metadata_url" validate:"required,url"`
	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" validate:"max=255"`
	// PhotoBaseURL prefixes candidate photo ids.
	PhotoBaseURL string `yaml:"photo_base_url" validate:"omitempty,url"`
}

// FileSourceConfig configures the directory feed.
type FileSourceConfig struct {
	Dir          string `yaml:"dir" validate:"required"`
	PhotoBaseURL string `yaml:"photo_base_url" validate:"omitempty,url"`
}

// SimulationSourceConfig configures the roster and poll feed.
type SimulationSourceConfig struct {
	// RosterPath is a CSV file of candidates.
	RosterPath string `yaml:"roster_path" validate:"required"`
	// PollPath is a JSON file of poll votes keyed by "D<n>".
	PollPath string `yaml:"poll_path" validate:"required"`
	// MatchCutoff is the minimum name similarity, in [0,1].
	MatchCutoff float64 `yaml:"match_cutoff" validate:"omitempty,gt=0,lte=1"`
	// PhotoBaseURL prefixes the roster photo ids.
	PhotoBaseURL string `yaml:"photo_base_url" validate:"omitempty,url"`
}

// ResilienceConfig specifies the error recovery strategy applied around
// every source.
type ResilienceConfig struct {
	// TimeoutMs bounds a single fetch attempt.
	TimeoutMs int `yaml:"timeout_ms" validate:"omitempty,min=1,max=600000"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
	// InitialWaitMs is the base delay of the exponential backoff.
	InitialWaitMs int `yaml:"initial_wait_ms" validate:"omitempty,min=0,max=60000"`
	// MaxWaitMs caps the backoff delay.
	MaxWaitMs int `yaml:"max_wait_ms" validate:"omitempty,min=0,max=300000"`
	// RatePerSecond limits fetches per second; zero disables the limiter.
	RatePerSecond float64 `yaml:"rate_per_second" validate:"min=0"`
	// Burst allows temporary spikes above the rate.
	Burst int `yaml:"burst" validate:"omitempty,min=1"`
	// BreakerFailures opens the circuit after that many consecutive
	// failures; zero disables the breaker.
	BreakerFailures int `yaml:"breaker_failures" validate:"min=0,max=1000"`
	// BreakerCooldownMs is how long the circuit stays open.
	BreakerCooldownMs int `yaml:"breaker_cooldown_ms" validate:"omitempty,min=1"`
}

// applyDefaults fills optional fields left empty in the file.
func (c *ElectionConfig) applyDefaults() {
	if c.DefaultSeats == 0 {
		c.DefaultSeats = DefaultSeats
	}
	if c.Allocation.TieBreak == "" {
		c.Allocation.TieBreak = DefaultTieBreak
	}
	if c.Aggregation.Concurrency == 0 {
		c.Aggregation.Concurrency = DefaultConcurrency
	}
	if len(c.Parity.FemaleTags) == 0 && len(c.Parity.MaleTags) == 0 {
		def := domain.DefaultParityPolicy()
		c.Parity.FemaleTags = def.FemaleTags
		c.Parity.MaleTags = def.MaleTags
	}
	if c.Parity.IncentivePerWoman == nil {
		v := float64(domain.DefaultIncentivePerWoman)
		c.Parity.IncentivePerWoman = &v
	}
	if c.Phenomena.Top == 0 {
		c.Phenomena.Top = DefaultTopN
	}
	if s := c.Sources.Simulation; s != nil && s.MatchCutoff == 0 {
		s.MatchCutoff = DefaultMatchCutoff
	}
	r := &c.Sources.Resilience
	if r.InitialWaitMs == 0 {
		r.InitialWaitMs = 200
	}
	if r.MaxWaitMs == 0 {
		r.MaxWaitMs = 2000
	}
	if r.Burst == 0 {
		r.Burst = 1
	}
	if r.BreakerCooldownMs == 0 {
		r.BreakerCooldownMs = 30000
	}
}

// DistrictIDs returns the district ids in seat table order.
func (c *ElectionConfig) DistrictIDs() []string {
	ids := make([]string, 0, len(c.Districts))
	for _, d := range c.Districts {
		ids = append(ids, d.ID)
	}
	return ids
}

// SeatTable returns the seats per district id.
func (c *ElectionConfig) SeatTable() map[string]int {
	table := make(map[string]int, len(c.Districts))
	for _, d := range c.Districts {
		table[d.ID] = d.Seats
	}
	return table
}

// HasDistrict reports whether the id is part of the seat table.
func (c *ElectionConfig) HasDistrict(id string) bool {
	for _, d := range c.Districts {
		if d.ID == id {
			return true
		}
	}
	return false
}

// PactNames returns the display name per pact id.
func (c *ElectionConfig) PactNames() map[string]string {
	names := make(map[string]string, len(c.Pacts))
	for _, p := range c.Pacts {
		names[p.ID] = p.Name
	}
	return names
}

// PartyNames returns the display name per party abbreviation.
func (c *ElectionConfig) PartyNames() map[string]string {
	names := make(map[string]string, len(c.Parties))
	for _, p := range c.Parties {
		names[p.ID] = p.Name
	}
	return names
}

// FeaturedPacts returns the ids of pacts always shown in summaries.
func (c *ElectionConfig) FeaturedPacts() map[string]bool {
	featured := make(map[string]bool)
	for _, p := range c.Pacts {
		if p.Featured {
			featured[p.ID] = true
		}
	}
	return featured
}

// PactOrder returns the visual ordering of pacts.
func (c *ElectionConfig) PactOrder() domain.PactOrder {
	return domain.NewPactOrder(c.VisualOrder)
}

// ScenarioSet builds the scenario catalogue.
func (c *ElectionConfig) ScenarioSet() (domain.ScenarioSet, error) {
	scenarios := make([]domain.Scenario, 0, len(c.Scenarios))
	for _, s := range c.Scenarios {
		scenarios = append(scenarios, domain.Scenario{
			Name:     s.Name,
			Label:    s.Label,
			NewID:    s.NewID,
			NewName:  s.NewName,
			MergeIDs: s.MergeIDs,
			OrderAs:  s.OrderAs,
		})
	}
	return domain.NewScenarioSet(scenarios)
}

// ParityPolicy returns the gender mapping and incentive.
func (c *ElectionConfig) ParityPolicy() domain.ParityPolicy {
	p := domain.ParityPolicy{
		FemaleTags:        c.Parity.FemaleTags,
		MaleTags:          c.Parity.MaleTags,
		IncentivePerWoman: domain.DefaultIncentivePerWoman,
	}
	if c.Parity.IncentivePerWoman != nil {
		p.IncentivePerWoman = *c.Parity.IncentivePerWoman
	}
	return p
}

// DistrictTimeout returns the per-district bound, zero when disabled.
func (c *ElectionConfig) DistrictTimeout() time.Duration {
	return time.Duration(c.Aggregation.DistrictTimeoutMs) * time.Millisecond
}
