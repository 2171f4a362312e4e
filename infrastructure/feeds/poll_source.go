package feeds

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// PollSourceName is the registry name of PollSource.
const PollSourceName = "simulation"

// rosterColumns are the CSV columns a roster must provide.
var rosterColumns = []string{"zona", "nombre", "nombre_full", "pacto", "partido", "sexo", "id_foto"}

// RosterEntry is one registered candidate.
type RosterEntry struct {
	DistrictID string
	// Name is the short name used to match poll entries.
	Name string
	// FullName is the ballot name; it also identifies the candidate.
	FullName string
	Pact     string
	Party    string
	Gender   string
	Photo    string
}

// PollSource simulates district results by assigning poll estimates to the
// registered candidates. Poll names are matched to roster names with a
// PollMatcher; unmatched candidates get zero votes.
type PollSource struct {
	roster     map[string][]RosterEntry
	matchers   map[string]*PollMatcher
	normalizer *Normalizer
}

var _ ports.ResultSource = (*PollSource)(nil)

// LoadPollSource reads the roster CSV and the poll JSON from disk.
func LoadPollSource(rosterPath, pollPath string, cutoff float64, normalizer *Normalizer) (*PollSource, error) {
	rosterFile, err := os.Open(filepath.Clean(rosterPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer func() { _ = rosterFile.Close() }()

	pollFile, err := os.Open(filepath.Clean(pollPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open poll: %w", err)
	}
	defer func() { _ = pollFile.Close() }()

	return NewPollSource(rosterFile, pollFile, cutoff, normalizer)
}

// NewPollSource parses a roster CSV and a poll JSON document of the form
// {"D10": [{"nombre": "...", "votos": 1234}]}.
func NewPollSource(roster, poll io.Reader, cutoff float64, normalizer *Normalizer) (*PollSource, error) {
	entries, err := ParseRoster(roster)
	if err != nil {
		return nil, err
	}

	var raw map[string][]PollEntry
	if err := json.NewDecoder(poll).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode poll: %w", err)
	}

	s := &PollSource{
		roster:     make(map[string][]RosterEntry),
		matchers:   make(map[string]*PollMatcher, len(raw)),
		normalizer: normalizer,
	}
	for _, e := range entries {
		s.roster[e.DistrictID] = append(s.roster[e.DistrictID], e)
	}
	for key, list := range raw {
		id, err := NormalizeDistrictID(strings.TrimPrefix(strings.ToUpper(key), "D"))
		if err != nil {
			return nil, fmt.Errorf("poll key %q: %w", key, err)
		}
		s.matchers[id] = NewPollMatcher(list, cutoff)
	}
	return s, nil
}

// Name implements ports.ResultSource.
func (s *PollSource) Name() string { return PollSourceName }

// FetchDistrict implements ports.ResultSource. A district without
// registered candidates yields an empty result.
func (s *PollSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.DistrictResult{}, err
	}
	id, err := NormalizeDistrictID(districtID)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), districtID, err)
	}

	matcher, ok := s.matchers[id]
	if !ok {
		matcher = NewPollMatcher(nil, 0)
	}
	entries := s.roster[id]
	raw := RawDistrict{DistrictID: id, Records: make([]RawRecord, 0, len(entries))}
	for _, e := range entries {
		votes, _ := matcher.Match(e.Name)
		raw.Records = append(raw.Records, RawRecord{
			ID:     e.FullName,
			Name:   e.FullName,
			Party:  e.Party,
			Quota:  e.Party,
			Pact:   e.Pact,
			Gender: e.Gender,
			Votes:  votes,
			Photo:  e.Photo,
		})
	}

	result, err := s.normalizer.Normalize(raw)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, err)
	}
	return result, nil
}

// ParseRoster reads a candidate roster. The payload may be UTF-8 or
// Latin-1. Rows whose zona is not a district id are skipped.
func ParseRoster(r io.Reader) ([]RosterEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("failed to decode roster: %w", err)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range rosterColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("roster is missing column %q", name)
		}
	}

	var entries []RosterEntry
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster line %d: %w", line, err)
		}
		field := func(name string) string {
			if i := col[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		id, err := NormalizeDistrictID(strings.TrimSuffix(field("zona"), ".0"))
		if err != nil {
			continue
		}
		entries = append(entries, RosterEntry{
			DistrictID: id,
			Name:       field("nombre"),
			FullName:   field("nombre_full"),
			Pact:       field("pacto"),
			Party:      field("partido"),
			Gender:     field("sexo"),
			Photo:      photoID(field("id_foto")),
		})
	}
	return entries, nil
}

// photoID turns spreadsheet exports such as "123.0" into "123".
func photoID(s string) string {
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(int64(f), 10)
}
