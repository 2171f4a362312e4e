package httpapi

import (
	"net/http"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string   `json:"status"`
	Sources   []string `json:"sources"`
	Districts int      `json:"districts"`
}

// CandidatesResponse is a district as the source reports it, after the
// optional scenario merge.
type CandidatesResponse struct {
	Source   string `json:"source"`
	Scenario string `json:"scenario,omitempty"`
	domain.DistrictResult
}

// ParityResponse is the body of GET /stats/parity.
type ParityResponse struct {
	RunID    string `json:"runId,omitempty"`
	Source   string `json:"source"`
	Scenario string `json:"scenario,omitempty"`

	National *domain.NationalParity `json:"national,omitempty"`
	District *domain.DistrictParity `json:"district,omitempty"`
}

// PhenomenaResponse is the body of GET /stats/phenomena.
type PhenomenaResponse struct {
	RunID      string           `json:"runId,omitempty"`
	Source     string           `json:"source"`
	Scenario   string           `json:"scenario,omitempty"`
	DistrictID string           `json:"districtId,omitempty"`
	Phenomena  domain.Phenomena `json:"phenomena"`
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Sources:   s.sources.Names(),
		Districts: len(s.cfg.Districts),
	})
}

// handleScenarios handles GET /scenarios
// Returns the configured coalition merges in name order.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	set := s.service.Scenarios()
	scenarios := make([]domain.Scenario, 0, len(set))
	for _, name := range set.Names() {
		sc, _ := set.Lookup(name)
		scenarios = append(scenarios, sc)
	}
	JSONResponse(w, http.StatusOK, scenarios)
}

// handleCandidates handles GET /districts/{id}/candidates
// Fetch failures are reported, not degraded: the caller asked for this
// district's data.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	id, err := s.districtID(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	src, err := s.source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := src.FetchDistrict(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	scenario := r.URL.Query().Get("scenario")
	JSONResponse(w, http.StatusOK, CandidatesResponse{
		Source:         src.Name(),
		Scenario:       scenario,
		DistrictResult: s.service.Scenarios().Apply(result, scenario),
	})
}

// handleAllocation handles GET /districts/{id}/allocation
// A district the source cannot deliver is returned degraded with status
// "degraded" and no elected candidates. An inconsistent district is
// rejected.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := s.districtID(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	src, err := s.source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	projection, err := s.service.FetchStrict(r.Context(), src, id, r.URL.Query().Get("scenario"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, projection)
}

// handleNational handles GET /national
func (s *Server) handleNational(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.national(r.Context(), src, r.URL.Query().Get("scenario"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSONResponse(w, http.StatusOK, result)
}

// handleParity handles GET /stats/parity
// With a "district" parameter only that district is projected.
func (s *Server) handleParity(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scenario := r.URL.Query().Get("scenario")
	resp := ParityResponse{Source: src.Name(), Scenario: scenario}

	if raw := r.URL.Query().Get("district"); raw != "" {
		id, err := s.districtID(raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		projection := s.service.Fetch(r.Context(), src, id, scenario)
		resp.District = &projection.Parity
		JSONResponse(w, http.StatusOK, resp)
		return
	}

	result, err := s.national(r.Context(), src, scenario)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp.RunID = result.ID
	resp.National = &result.Parity
	JSONResponse(w, http.StatusOK, resp)
}

// handlePhenomena handles GET /stats/phenomena
// Nationally only the configured top entries of each list are returned.
func (s *Server) handlePhenomena(w http.ResponseWriter, r *http.Request) {
	src, err := s.source(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	scenario := r.URL.Query().Get("scenario")
	resp := PhenomenaResponse{Source: src.Name(), Scenario: scenario}

	if raw := r.URL.Query().Get("district"); raw != "" {
		id, err := s.districtID(raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.DistrictID = id
		resp.Phenomena = s.service.Fetch(r.Context(), src, id, scenario).Phenomena
		JSONResponse(w, http.StatusOK, resp)
		return
	}

	result, err := s.national(r.Context(), src, scenario)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp.RunID = result.ID
	resp.Phenomena = result.Phenomena
	JSONResponse(w, http.StatusOK, resp)
}
