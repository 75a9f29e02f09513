package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/nexis/internal/assessment"
	"github.com/opensource-finance/nexis/internal/auth"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/policy"
	"github.com/opensource-finance/nexis/internal/ratelimit"
	"github.com/opensource-finance/nexis/internal/repository"
)

// Options are the collaborators of the API. Repository, Cache and Bus may
// be nil; routes that need them answer 503.
type Options struct {
	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Service    *assessment.Service
	Policies   *policy.Registry
	Auth       *auth.Manager

	AssessmentLimiter ratelimit.Limiter
	DecisionLimiter   ratelimit.Limiter

	Version string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo          domain.Repository
	cache         domain.Cache
	bus           domain.EventBus
	service       *assessment.Service
	policies      *policy.Registry
	assessLimiter ratelimit.Limiter
	version       string
	now           func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(opts Options) *Handler {
	limiter := opts.AssessmentLimiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	return &Handler{
		repo:          opts.Repository,
		cache:         opts.Cache,
		bus:           opts.Bus,
		service:       opts.Service,
		policies:      opts.Policies,
		assessLimiter: limiter,
		version:       opts.Version,
		now:           time.Now,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(r.Context()) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(r.Context()) })
	}
	if h.bus != nil {
		check("eventBus", func() error { return h.bus.Ping(r.Context()) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Processor().Validate(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "scoring pipeline not ready: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns the rule catalog.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	catalog := h.service.Processor().Catalog()
	defs := catalog.Rules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":      defs,
		"count":      len(defs),
		"categories": catalog.Categories(),
		"maxPoints":  catalog.MaxPoints(),
		"settings":   catalog.Settings(),
	})
}

// GetRule returns one rule definition.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	def, ok := h.service.Processor().Catalog().Rule(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// requireRepo answers 503 when no repository is configured.
func (h *Handler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return false
	}
	return true
}

// writeStoreError maps repository errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, repository.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("repository error", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to access "+what)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
