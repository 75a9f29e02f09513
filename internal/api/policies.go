package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/nexis/internal/domain"
)

// PolicyRequest is the request body for POST /policies.
type PolicyRequest struct {
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Version     string              `json:"version"`
	Expression  string              `json:"expression"`
	Bands       []domain.PolicyBand `json:"bands"`
	Enabled     *bool               `json:"enabled,omitempty"`
}

// ListPolicies returns the stored lender policies of the tenant.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	policies, err := h.repo.ListPolicies(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		writeStoreError(w, err, "policies")
		return
	}

	loaded := 0
	if h.policies != nil {
		if e, err := h.policies.Engine(r.Context(), GetTenantID(r.Context())); err == nil {
			loaded = e.Count()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policies": nonNil(policies),
		"count":    len(policies),
		"loaded":   loaded,
	})
}

// GetPolicy returns one stored policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	p, err := h.repo.GetPolicy(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "policy")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePolicy compiles and stores a policy. It takes effect after
// POST /policies/reload.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	var req PolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Expression == "" {
		writeError(w, http.StatusBadRequest, "name and expression are required")
		return
	}

	p := &domain.LenderPolicy{
		ID:          req.ID,
		TenantID:    GetTenantID(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled == nil || *req.Enabled,
		CreatedAt:   h.now().UTC(),
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Version == "" {
		p.Version = "1.0.0"
	}

	if h.policies != nil {
		if err := h.policies.Validate(p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid policy: "+err.Error())
			return
		}
	}

	if err := h.repo.SavePolicy(r.Context(), p.TenantID, p); err != nil {
		writeStoreError(w, err, "policy")
		return
	}

	slog.Info("policy saved", "tenant_id", p.TenantID, "policy_id", p.ID, "name", p.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"policy":  p,
		"message": "Policy saved. Call POST /policies/reload to activate it.",
	})
}

// DeletePolicy removes a stored policy.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	if err := h.repo.DeletePolicy(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err, "policy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReloadPolicies swaps the tenant's loaded policies for the stored set.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	if h.policies == nil {
		writeError(w, http.StatusServiceUnavailable, "policy engine not available")
		return
	}

	tenantID := GetTenantID(r.Context())
	n, err := h.policies.Reload(r.Context(), tenantID)
	if err != nil {
		slog.Error("policy reload failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload policies: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "policies reloaded",
		"count":    n,
		"tenantId": tenantID,
	})
}
