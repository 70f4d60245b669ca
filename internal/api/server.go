package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-health/kestrel/internal/analysis"
	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, store domain.ReferenceStore, cache domain.Cache, bus domain.EventBus, analyzer *analysis.Analyzer, policies *policy.Engine, version string) *Server {
	handler := NewHandler(store, cache, bus, analyzer, policies, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Claim analysis
		r.Post("/analyze", handler.Analyze)
		r.Post("/claims", handler.SubmitClaim)

		// Analysis retrieval
		r.Get("/analyses/{id}", handler.GetAnalysis)
		r.Get("/claims/{claimID}/analyses", handler.ListClaimAnalyses)

		// Screening policy management
		r.Get("/policies", handler.ListPolicies)
		r.Get("/policies/{id}", handler.GetPolicy)
		r.Post("/policies", handler.CreatePolicy)
		r.Put("/policies/{id}", handler.UpdatePolicy)
		r.Delete("/policies/{id}", handler.DeletePolicy)
		r.Post("/policies/reload", handler.ReloadPolicies)

		// Reference data loading
		r.Put("/reference/providers", handler.UpsertProviders)
		r.Put("/reference/eligibility", handler.UpsertEligibility)
		r.Put("/reference/ncci-edits", handler.UpsertNcciEdits)
		r.Put("/reference/mue-limits", handler.UpsertMueLimits)
		r.Put("/reference/benefit-limits", handler.UpsertBenefitLimits)
		r.Put("/reference/prior-auths", handler.UpsertPriorAuths)
		r.Post("/reference/service-history", handler.AppendServiceHistory)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
