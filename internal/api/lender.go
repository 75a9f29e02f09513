package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/nexis/internal/assessment"
	"github.com/opensource-finance/nexis/internal/auth"
	"github.com/opensource-finance/nexis/internal/bus"
	"github.com/opensource-finance/nexis/internal/domain"
)

// LenderIDHeader identifies the lender when auth is disabled.
const LenderIDHeader = "X-Lender-ID"

// DecisionRequest is the request body for POST /lender/decisions.
type DecisionRequest struct {
	SubjectID     string              `json:"subjectId"`
	LenderID      string              `json:"lenderId"`
	Decision      domain.DecisionType `json:"decision"`
	Justification string              `json:"justification"`
	LoanAmount    *float64            `json:"loanAmount,omitempty"`
	InterestRate  *float64            `json:"interestRate,omitempty"`
	TermMonths    *int                `json:"termMonths,omitempty"`
}

// DecisionResponse is the response for POST /lender/decisions.
type DecisionResponse struct {
	DecisionID   string `json:"decisionId"`
	AssessmentID string `json:"assessmentId"`
	Message      string `json:"message"`
	RecordedAt   string `json:"recordedAt"`
}

// lenderKey rate limits decisions per lender, falling back to the client IP.
func lenderKey(r *http.Request) (string, string) {
	tenantID := r.Header.Get(TenantIDHeader)
	if c := auth.ClaimsFromContext(r.Context()); c != nil && c.LenderID != "" {
		return tenantID, c.LenderID
	}
	if id := r.Header.Get(LenderIDHeader); id != "" {
		return tenantID, id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return tenantID, "ip:" + host
}

// GetLenderView returns the decision-support summary of a subject with the
// tenant's lender policies applied.
func (h *Handler) GetLenderView(w http.ResponseWriter, r *http.Request) {
	a, ok := h.latest(w, r)
	if !ok {
		return
	}

	var results []domain.PolicyResult
	if h.policies != nil {
		var err error
		results, err = h.policies.Evaluate(r.Context(), GetTenantID(r.Context()), a)
		if err != nil {
			slog.Warn("lender policies unavailable", "tenant_id", GetTenantID(r.Context()), "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment.LenderView(a, results, h.now()))
}

// RecordDecision stores a lender decision with a snapshot of the
// assessment it was based on.
func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req DecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if c := auth.ClaimsFromContext(ctx); c != nil {
		if req.LenderID != "" && req.LenderID != c.LenderID {
			writeError(w, http.StatusForbidden, "lenderId does not match token")
			return
		}
		req.LenderID = c.LenderID
	}

	d := &domain.LenderDecision{
		TenantID:      tenantID,
		SubjectID:     req.SubjectID,
		LenderID:      req.LenderID,
		Decision:      req.Decision,
		Justification: req.Justification,
		LoanAmount:    req.LoanAmount,
		InterestRate:  req.InterestRate,
		TermMonths:    req.TermMonths,
	}
	if err := d.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.service.Latest(ctx, tenantID, d.SubjectID)
	if err != nil {
		if errors.Is(err, assessment.ErrNoAssessment) {
			writeError(w, http.StatusNotFound, "no score found for subject")
			return
		}
		slog.Error("failed to load assessment for decision", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}

	assessment.Snapshot(d, a)
	d.ID = uuid.New().String()
	d.DecidedAt = h.now().UTC()

	if err := h.repo.SaveDecision(ctx, tenantID, d); err != nil {
		writeStoreError(w, err, "decision")
		return
	}

	if h.bus != nil {
		if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicDecisionRecorded, d); err != nil {
			slog.Warn("failed to publish decision", "decision_id", d.ID, "error", err)
		}
	}

	slog.Info("lender decision recorded",
		"tenant_id", tenantID,
		"decision_id", d.ID,
		"subject_id", d.SubjectID,
		"lender_id", d.LenderID,
		"decision", d.Decision,
		"trust_score", d.TrustScore,
	)

	writeJSON(w, http.StatusCreated, DecisionResponse{
		DecisionID:   d.ID,
		AssessmentID: d.AssessmentID,
		Message:      "Decision recorded. Audit trail created.",
		RecordedAt:   d.DecidedAt.Format(time.RFC3339),
	})
}

// ListDecisions returns the decision audit trail of a subject.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	list, err := h.repo.ListDecisions(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "decisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": nonNil(list),
		"count":     len(list),
	})
}
