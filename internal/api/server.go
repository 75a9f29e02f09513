package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/nexis/internal/auth"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/ratelimit"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, opts Options) *Server {
	handler := NewHandler(opts)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	lenderAuth := auth.Middleware(opts.Auth, func(r *http.Request) string {
		return r.Header.Get(TenantIDHeader)
	})

	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Rule catalog
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)

		// Scoring
		r.Post("/assessments", handler.CreateAssessment)
		r.Post("/assessments/async", handler.QueueAssessment)
		r.Get("/assessments/{id}", handler.GetAssessment)

		// Subject views
		r.Route("/subjects/{id}", func(r chi.Router) {
			r.Get("/assessment", handler.GetLatestAssessment)
			r.Get("/assessments", handler.ListAssessments)
			r.Get("/explanation", handler.GetExplanation)
			r.Get("/improvement", handler.GetImprovement)
			r.Get("/roadmap", handler.GetRoadmap)

			r.Get("/consent", handler.GetConsent)
			r.Post("/consent", handler.GiveConsent)
			r.Delete("/consent", handler.WithdrawConsent)
		})

		// Lender policy management
		r.Route("/policies", func(r chi.Router) {
			r.Use(lenderAuth)

			r.Get("/", handler.ListPolicies)
			r.Post("/", handler.CreatePolicy)
			r.Post("/reload", handler.ReloadPolicies)
			r.Get("/{id}", handler.GetPolicy)
			r.Delete("/{id}", handler.DeletePolicy)
		})

		// Lender decision support
		r.Route("/lender", func(r chi.Router) {
			r.Use(lenderAuth)

			r.Get("/subjects/{id}", handler.GetLenderView)
			r.Get("/subjects/{id}/decisions", handler.ListDecisions)
			r.With(ratelimit.Middleware(opts.DecisionLimiter, lenderKey)).
				Post("/decisions", handler.RecordDecision)
		})
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
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.config.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
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
