// Package httpapi exposes the aggregation service over HTTP: single
// patent fetch, full molecule search, batch search, health and status.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pharmyrus/pharmyrus/internal/batch"
	"github.com/pharmyrus/pharmyrus/internal/pipeline"
	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

// PatentFetcher serves single-record lookups; normally the crawler pool.
type PatentFetcher interface {
	Fetch(ctx context.Context, woNumber string) wipo.PatentRecord
	Size() int
	CacheLen() int
}

// PipelineRunner runs the full per-molecule pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, molecule, countryFilter string, limit int) (pipeline.Report, error)
}

// BatchRunner runs the pipeline over many molecules.
type BatchRunner interface {
	RunBatch(ctx context.Context, molecules []string, countryFilter string, limit int) batch.BatchReport
}

type Server struct {
	patents   PatentFetcher
	pipeline  PipelineRunner
	batch     BatchRunner
	startedAt time.Time
}

func NewServer(patents PatentFetcher, p PipelineRunner, b BatchRunner) http.Handler {
	s := &Server{
		patents:   patents,
		pipeline:  p,
		batch:     b,
		startedAt: time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/patents/", s.handlePatent)
	mux.HandleFunc("/v1/search/", s.handleSearch)
	mux.HandleFunc("/v1/batch/search", s.handleBatchSearch)
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/system/status", s.handleSystemStatus)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"message": message,
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func clampLimit(v int) int {
	if v < 1 {
		return 1
	}
	if v > maxSearchLimit {
		return maxSearchLimit
	}
	return v
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handlePatent(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	woNumber := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/patents/"), "/")
	if woNumber == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rec := s.patents.Fetch(r.Context(), woNumber)
	if rec.Failed() {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"ok":          false,
			"publication": rec.Publication,
			"error":       rec.Error,
		})
		return
	}

	if country := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country"))); country != "" {
		filtered := wipo.FilterByCountry(rec.WorldwideApplications, country)
		rec.WorldwideApplications = filtered
		rec.FamilyCountries = wipo.FamilyCountries(filtered)
		rec.CountryFilterApplied = country
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	molecule := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/search/"), "/")
	if molecule == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	limit := clampLimit(parseInt(r.URL.Query().Get("limit"), defaultSearchLimit))

	report, err := s.pipeline.Run(r.Context(), molecule, country, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBatchSearch(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Molecules []string `json:"molecules"`
		Country   string   `json:"country"`
		Limit     int      `json:"limit"`
	}
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	molecules := make([]string, 0, len(req.Molecules))
	for _, m := range req.Molecules {
		if m = strings.TrimSpace(m); m != "" {
			molecules = append(molecules, m)
		}
	}
	if len(molecules) == 0 {
		writeError(w, http.StatusBadRequest, "molecules is required")
		return
	}
	limit := defaultSearchLimit
	if req.Limit != 0 {
		limit = clampLimit(req.Limit)
	}

	report := s.batch.RunBatch(r.Context(), molecules, req.Country, limit)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": "healthy",
	})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"pool_size":      s.patents.Size(),
		"cache_entries":  s.patents.CacheLen(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}
