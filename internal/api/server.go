package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/wikirefs/internal/config"
	"github.com/dgallion1/wikirefs/internal/pipeline"
	"github.com/dgallion1/wikirefs/internal/wiki"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server for wikirefs.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	fetcher      wiki.Fetcher
	stats        *wiki.FetchStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil when
// the fetcher does not record latencies.
func NewServer(orch *pipeline.Orchestrator, stats *wiki.FetchStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		fetcher:      orch.Fetcher(),
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Browser viewer.
	r.Get("/", s.handleIndex)
	r.Get("/show", s.handleShow)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/scan", s.handleScan)
		r.Get("/api/articles/*", s.handleArticle)

		r.Post("/api/jobs", s.handleSubmitJob)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/stats/fetch", s.handleFetchStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
