package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type errorBody struct {
	Error string `json:"error"`
}

type storedReportBody struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard(r.Context(), sanitizeInput(r.URL.Query().Get("date")))
	if err != nil {
		s.writeError(w, r, log.OpDashboard, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	found, err := s.svc.Search(r.Context(), sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		s.writeError(w, r, log.OpSearch, err)
		return
	}
	if found == nil {
		found = []core.Record{}
	}
	writeJSON(w, http.StatusOK, found)
}

// handleCategory serves both category views: the matching records, or with
// view=sum one total per category.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := sanitizeInput(q.Get("category"))
	if category == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "category is required"})
		return
	}
	ref := sanitizeInput(q.Get("date"))

	switch view := strings.ToLower(strings.TrimSpace(q.Get("view"))); view {
	case "", "records":
		out, err := s.svc.SpendingByCategory(r.Context(), category, ref)
		if err != nil {
			s.writeError(w, r, log.OpCategory, err)
			return
		}
		if out == nil {
			out = []core.Record{}
		}
		writeJSON(w, http.StatusOK, out)
	case "sum":
		out, err := s.svc.CategoryTotals(r.Context(), category, ref)
		if err != nil {
			s.writeError(w, r, log.OpTotals, err)
			return
		}
		if out == nil {
			out = []core.CategoryAmount{}
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "view must be 'records' or 'sum'"})
	}
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "report archive is not enabled"})
		return
	}
	limit := defaultListLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	stored, err := s.archive.List(r.Context(), sanitizeInput(r.URL.Query().Get("operation")), limit)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	out := make([]storedReportBody, 0, len(stored))
	for _, sr := range stored {
		// Listings omit payloads; fetch a single report for the body.
		out = append(out, storedReportBody{ID: sr.ID, Operation: sr.Operation, Name: sr.Name, CreatedAt: sr.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "report archive is not enabled"})
		return
	}
	sr, err := s.archive.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, storedReportBody{
		ID:        sr.ID,
		Operation: sr.Operation,
		Name:      sr.Name,
		CreatedAt: sr.CreatedAt,
		Payload:   json.RawMessage(sr.Payload),
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrDateFormat):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEmptyInput), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUpstreamData), errors.Is(err, core.ErrUpstreamStatus):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, op, nil)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
