// Package http exposes the report operations as a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/middleware/ratelimit"
	"finreport/internal/middleware/security"
	"finreport/internal/storage"
)

// ReportAPI is the part of services.ReportService the handlers use.
type ReportAPI interface {
	Dashboard(ctx context.Context, ref string) (core.Summary, error)
	Search(ctx context.Context, query string) ([]core.Record, error)
	SpendingByCategory(ctx context.Context, category, ref string) ([]core.Record, error)
	CategoryTotals(ctx context.Context, category, ref string) ([]core.CategoryAmount, error)
}

// Archive gives read access to previously written reports.
type Archive interface {
	List(ctx context.Context, operation string, limit int) ([]storage.StoredReport, error)
	Get(ctx context.Context, id string) (storage.StoredReport, error)
	Ping(ctx context.Context) error
}

// Options configures NewServer. Service is required.
type Options struct {
	Addr      string
	Service   ReportAPI
	Archive   Archive
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	svc          ReportAPI
	archive      Archive
	limiter      *ratelimit.Limiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		svc:     opts.Service,
		archive: opts.Archive,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		logger:  logger.WithComponent(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/search", s.handleSearch)
	api.HandleFunc("GET /api/reports/category", s.handleCategory)
	api.HandleFunc("GET /api/reports", s.handleListReports)
	api.HandleFunc("GET /api/reports/{id}", s.handleGetReport)

	resolver := security.NewIPResolver()
	limited := s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, resolver.ClientIP(r), log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})
	mux.Handle("/api/", limited(api))

	handler := security.Headers(security.DefaultHeadersConfig())(mux)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	if s.archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.archive.Ping(ctx); err != nil {
			log.FromContext(r.Context()).LogError(r.Context(), "Readiness check failed", err, "ready", nil)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
