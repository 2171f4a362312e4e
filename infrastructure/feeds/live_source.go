package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

// LiveSourceName is the registry name of LiveSource.
const LiveSourceName = "live"

// DistrictPlaceholder is replaced with the canonical district id in the
// votes URL template.
const DistrictPlaceholder = "{district}"

// validVotesKey is the AMBITO of the row carrying the district's valid
// vote total.
const validVotesKey = "V"

const maxBodyBytes = 16 << 20

// LiveSourceOptions configures LiveSource.
type LiveSourceOptions struct {
	// VotesURLTemplate points to the per-district XML vote count and
	// contains DistrictPlaceholder.
	VotesURLTemplate string
	// MetadataURL points to the JSON catalogue of candidates and pacts.
	MetadataURL string
	UserAgent   string
	// Client defaults to a client with a 10 second timeout.
	Client *http.Client
}

// LiveSource reads the published election night feeds: an XML vote count
// per district and a JSON catalogue with the candidates of every district.
type LiveSource struct {
	opts       LiveSourceOptions
	client     *http.Client
	normalizer *Normalizer
	// sf collapses concurrent catalogue downloads into one request.
	sf singleflight.Group
}

var _ ports.ResultSource = (*LiveSource)(nil)

// NewLiveSource creates a LiveSource.
func NewLiveSource(opts LiveSourceOptions, normalizer *Normalizer) *LiveSource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &LiveSource{opts: opts, client: client, normalizer: normalizer}
}

// Name implements ports.ResultSource.
func (s *LiveSource) Name() string { return LiveSourceName }

// FetchDistrict implements ports.ResultSource. Candidates listed in the
// catalogue but absent from the vote count get zero votes.
func (s *LiveSource) FetchDistrict(ctx context.Context, districtID string) (domain.DistrictResult, error) {
	id, err := NormalizeDistrictID(districtID)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), districtID, err)
	}

	votesURL := strings.ReplaceAll(s.opts.VotesURLTemplate, DistrictPlaceholder, id)
	body, err := s.get(ctx, votesURL, id)
	if err != nil {
		return domain.DistrictResult{}, err
	}
	votes, total, err := parseVoteCount(body)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, err)
	}

	meta, err := s.catalogue(ctx, id)
	if err != nil {
		return domain.DistrictResult{}, err
	}
	district, ok := meta.Districts[id]
	if !ok {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, ports.ErrNotFound)
	}

	raw := RawDistrict{
		DistrictID: id,
		ValidVotes: total,
		PactNames:  meta.Pacts,
		Records:    make([]RawRecord, 0, len(district.Candidates)),
	}
	for _, c := range district.Candidates {
		raw.Records = append(raw.Records, RawRecord{
			ID:     c.ID,
			Name:   c.Name,
			Party:  c.Party,
			Quota:  c.Quota,
			Pact:   c.Pact,
			Gender: c.Gender,
			Votes:  votes[c.ID],
			Photo:  string(c.Photo),
		})
	}

	result, err := s.normalizer.Normalize(raw)
	if err != nil {
		return domain.DistrictResult{}, ports.NewSourceError(s.Name(), id, err)
	}
	return result, nil
}

func (s *LiveSource) catalogue(ctx context.Context, districtID string) (*catalogue, error) {
	v, err, _ := s.sf.Do(s.opts.MetadataURL, func() (any, error) {
		body, err := s.get(ctx, s.opts.MetadataURL, districtID)
		if err != nil {
			return nil, err
		}
		var meta catalogue
		if err := json.Unmarshal(body, &meta); err != nil {
			return nil, ports.NewSourceError(s.Name(), districtID,
				fmt.Errorf("%w: catalogue: %w", ports.ErrInvalidResponse, err))
		}
		return &meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalogue), nil
}

// get performs a GET and maps transport failures and status codes to the
// ports sentinels so the retry middleware can tell them apart.
func (s *LiveSource) get(ctx context.Context, url, districtID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.NewSourceError(s.Name(), districtID, err)
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ports.NewSourceError(s.Name(), districtID, fmt.Errorf("%w: %w", ports.ErrTimeout, err))
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, ports.NewSourceError(s.Name(), districtID, fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		serr := ports.NewSourceError(s.Name(), districtID, statusError(resp.StatusCode))
		serr.StatusCode = resp.StatusCode
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			wait := time.Duration(secs) * time.Second
			serr.RetryAfter = &wait
		}
		return nil, serr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ports.NewSourceError(s.Name(), districtID, fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err))
	}
	return body, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ports.ErrRateLimited
	case code == http.StatusNotFound:
		return ports.ErrNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ports.ErrTimeout
	case code >= 500:
		return ports.ErrServiceUnavailable
	default:
		return fmt.Errorf("%w: status %d", ports.ErrInvalidResponse, code)
	}
}

// voteRow is one ROW of the XML vote count. AMBITO is a candidate id, or
// "V" for the valid vote total.
type voteRow struct {
	Ambito string `xml:"AMBITO"`
	Votes  string `xml:"VOTOS"`
}

// parseVoteCount reads every ROW element of the XML vote count. Vote
// figures use "." as thousands separator.
func parseVoteCount(body []byte) (map[string]float64, float64, error) {
	decoder := xml.NewDecoder(xmlPayload(body))
	decoder.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	}

	votes := make(map[string]float64)
	var total float64
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: vote count: %w", ports.ErrInvalidResponse, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "ROW" {
			continue
		}

		var row voteRow
		if err := decoder.DecodeElement(&row, &start); err != nil {
			return nil, 0, fmt.Errorf("%w: vote count row: %w", ports.ErrInvalidResponse, err)
		}
		key := strings.TrimSpace(row.Ambito)
		figure := strings.ReplaceAll(strings.TrimSpace(row.Votes), ".", "")
		if key == "" || figure == "" {
			continue
		}
		n, err := strconv.ParseInt(figure, 10, 64)
		if err != nil || n < 0 {
			return nil, 0, fmt.Errorf("%w: votes %q for %s", ports.ErrInvalidResponse, row.Votes, key)
		}

		switch {
		case key == validVotesKey:
			total = float64(n)
		case isDigits(key):
			votes[key] = float64(n)
		}
	}
	return votes, total, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// xmlPayload strips a byte order mark and, for undeclared payloads that are
// not valid UTF-8, reads them as Latin-1.
func xmlPayload(body []byte) io.Reader {
	body = bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if utf8.Valid(body) || declaresEncoding(body) {
		return bytes.NewReader(body)
	}
	return transform.NewReader(bytes.NewReader(body), charmap.ISO8859_1.NewDecoder())
}

func declaresEncoding(body []byte) bool {
	if !bytes.HasPrefix(body, []byte("<?xml")) {
		return false
	}
	end := bytes.Index(body, []byte("?>"))
	return end > 0 && bytes.Contains(body[:end], []byte("encoding="))
}

func isDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return s != ""
}

// catalogue is the JSON metadata feed. Pacts maps pact letters to names;
// Districts is keyed by canonical district id.
type catalogue struct {
	Pacts     map[string]string            `json:"dbg"`
	Districts map[string]catalogueDistrict `json:"dbdp"`
}

type catalogueDistrict struct {
	Candidates orderedCandidates `json:"c"`
}

type catalogueCandidate struct {
	ID     string     `json:"-"`
	Name   string     `json:"n"`
	Party  string     `json:"p"`
	Quota  string     `json:"c"`
	Pact   string     `json:"g"`
	Gender string     `json:"s"`
	Photo  flexString `json:"t"`
}

// orderedCandidates decodes the candidate object keyed by candidate id while
// keeping the order the feed lists them in, which the allocator uses to
// break ties.
type orderedCandidates []catalogueCandidate

func (o *orderedCandidates) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("candidates: expected object, got %v", tok)
	}

	var out orderedCandidates
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var c catalogueCandidate
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("candidate %s: %w", key, err)
		}
		c.ID = strings.TrimSpace(key)
		if c.Name == "" {
			c.Name = "Desconocido"
		}
		if c.Party == "" {
			c.Party = IndependentParty
		}
		if c.Pact == "" {
			c.Pact = "?"
		}
		out = append(out, c)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
