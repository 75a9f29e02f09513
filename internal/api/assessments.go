package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/nexis/internal/assessment"
	"github.com/opensource-finance/nexis/internal/bus"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/ratelimit"
)

// AssessmentRequest is the request body for POST /assessments.
type AssessmentRequest struct {
	SubjectID           string                  `json:"subjectId"`
	DocumentationMonths *int                    `json:"documentationMonths,omitempty"`
	Record              domain.BehavioralRecord `json:"record"`
}

func (req *AssessmentRequest) validate() error {
	if req.SubjectID == "" {
		return errors.New("subjectId is required")
	}
	if req.DocumentationMonths != nil && *req.DocumentationMonths < 0 {
		return errors.New("documentationMonths must not be negative")
	}
	return req.Record.Validate()
}

// QueuedResponse is the response for POST /assessments/async.
type QueuedResponse struct {
	RequestID string `json:"requestId"`
	SubjectID string `json:"subjectId"`
	Status    string `json:"status"`
	Topic     string `json:"topic"`
}

// ExplanationResponse is the response for GET /subjects/{id}/explanation.
type ExplanationResponse struct {
	AssessmentID    string                    `json:"assessmentId"`
	SubjectID       string                    `json:"subjectId"`
	TrustScore      int                       `json:"trustScore"`
	RiskLevel       domain.RiskLevel          `json:"riskLevel"`
	Factors         []domain.Factor           `json:"factors"`
	PositiveFactors []domain.Factor           `json:"positiveFactors"`
	NegativeFactors []domain.Factor           `json:"negativeFactors"`
	Summary         domain.Summary            `json:"summary"`
	Metrics         []domain.BehavioralMetric `json:"behavioralMetrics"`
}

// ImprovementResponse is the response for GET /subjects/{id}/improvement.
type ImprovementResponse struct {
	AssessmentID    string                  `json:"assessmentId"`
	SubjectID       string                  `json:"subjectId"`
	CurrentScore    int                     `json:"currentScore"`
	PotentialScore  int                     `json:"potentialScore"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// RoadmapResponse is the response for GET /subjects/{id}/roadmap.
type RoadmapResponse struct {
	AssessmentID string               `json:"assessmentId"`
	SubjectID    string               `json:"subjectId"`
	Steps        []domain.RoadmapStep `json:"steps"`
}

// ConsentRequest is the request body for POST /subjects/{id}/consent.
type ConsentRequest struct {
	ConsentGiven bool `json:"consentGiven"`
}

// parseAssessment decodes, validates and rate limits a scoring request.
func (h *Handler) parseAssessment(w http.ResponseWriter, r *http.Request) (*AssessmentRequest, bool) {
	var req AssessmentRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	tenantID := GetTenantID(r.Context())
	allowed, err := h.assessLimiter.Allow(r.Context(), tenantID, req.SubjectID)
	if err != nil {
		slog.Warn("assessment rate limiter error", "error", err)
	} else if !allowed {
		ratelimit.WriteLimited(w, h.assessLimiter)
		return nil, false
	}

	return &req, true
}

// CreateAssessment handles POST /assessments: scores synchronously.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.parseAssessment(w, r)
	if !ok {
		return
	}

	a, err := h.service.Assess(ctx, GetTenantID(ctx), &domain.AssessmentRequest{
		RequestID:           GetRequestID(ctx),
		SubjectID:           req.SubjectID,
		DocumentationMonths: req.DocumentationMonths,
		Record:              req.Record,
	}, GetTraceID(ctx))
	if err != nil {
		h.writeAssessError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a.ToResponse())
}

// QueueAssessment handles POST /assessments/async: publishes the request
// for the worker and answers 202.
func (h *Handler) QueueAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	req, ok := h.parseAssessment(w, r)
	if !ok {
		return
	}

	if err := h.service.CheckConsent(ctx, tenantID, req.SubjectID); err != nil {
		h.writeAssessError(w, err)
		return
	}

	msg := domain.AssessmentRequest{
		RequestID:           uuid.New().String(),
		SubjectID:           req.SubjectID,
		DocumentationMonths: req.DocumentationMonths,
		Record:              req.Record,
	}
	if err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicAssessmentRequested, msg); err != nil {
		slog.Error("failed to queue assessment", "subject_id", req.SubjectID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to queue assessment")
		return
	}

	writeJSON(w, http.StatusAccepted, QueuedResponse{
		RequestID: msg.RequestID,
		SubjectID: msg.SubjectID,
		Status:    "queued",
		Topic:     domain.TopicAssessmentCompleted,
	})
}

func (h *Handler) writeAssessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assessment.ErrConsentRequired):
		writeError(w, http.StatusForbidden, "subject consent not given")
	case errors.Is(err, domain.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("assessment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "assessment failed")
	}
}

// GetAssessment returns a stored assessment by id.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	a, err := h.repo.GetAssessment(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// latest loads the newest assessment of the subject in the URL, writing
// 404 when there is none.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) (*domain.Assessment, bool) {
	ctx := r.Context()
	a, err := h.service.Latest(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, assessment.ErrNoAssessment) {
			writeError(w, http.StatusNotFound, "no assessment found, submit a record first")
			return nil, false
		}
		slog.Error("failed to load assessment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return nil, false
	}
	return a, true
}

// GetLatestAssessment returns the newest assessment summary of a subject.
func (h *Handler) GetLatestAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.ToResponse())
}

// ListAssessments returns the assessment history of a subject, newest first.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	list, err := h.repo.ListAssessments(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"), queryInt(r, "limit", 20))
	if err != nil {
		writeStoreError(w, err, "assessments")
		return
	}

	out := make([]*domain.AssessmentResponse, len(list))
	for i, a := range list {
		out[i] = a.ToResponse()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": out,
		"count":       len(out),
	})
}

// GetExplanation returns the ranked factors behind the latest score.
func (h *Handler) GetExplanation(w http.ResponseWriter, r *http.Request) {
	a, ok := h.latest(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ExplanationResponse{
		AssessmentID:    a.ID,
		SubjectID:       a.SubjectID,
		TrustScore:      a.TrustScore,
		RiskLevel:       a.RiskLevel,
		Factors:         a.Factors,
		PositiveFactors: nonNil(a.FactorsOf(domain.FactorPositive)),
		NegativeFactors: nonNil(a.FactorsOf(domain.FactorNegative)),
		Summary:         a.Summary,
		Metrics:         assessment.Metrics(&a.Record),
	})
}

// GetImprovement returns the improvement plan of the latest assessment.
func (h *Handler) GetImprovement(w http.ResponseWriter, r *http.Request) {
	a, ok := h.latest(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ImprovementResponse{
		AssessmentID:    a.ID,
		SubjectID:       a.SubjectID,
		CurrentScore:    a.TrustScore,
		PotentialScore:  a.PotentialScore,
		Recommendations: nonNil(a.Recommendations),
	})
}

// GetRoadmap returns the ordered improvement steps of the latest assessment.
func (h *Handler) GetRoadmap(w http.ResponseWriter, r *http.Request) {
	a, ok := h.latest(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, RoadmapResponse{
		AssessmentID: a.ID,
		SubjectID:    a.SubjectID,
		Steps:        nonNil(assessment.Roadmap(a)),
	})
}

// GiveConsent records that a subject agreed to be assessed.
func (h *Handler) GiveConsent(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	var req ConsentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.ConsentGiven {
		writeError(w, http.StatusBadRequest, "consent must be explicitly given to proceed")
		return
	}

	h.saveConsent(w, r, true, "Consent recorded. The subject may now be assessed.")
}

// WithdrawConsent records that a subject no longer agrees to be assessed.
func (h *Handler) WithdrawConsent(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}
	h.saveConsent(w, r, false, "Consent withdrawn.")
}

func (h *Handler) saveConsent(w http.ResponseWriter, r *http.Request, given bool, message string) {
	ctx := r.Context()
	consent := &domain.Consent{
		SubjectID: chi.URLParam(r, "id"),
		Given:     given,
		UpdatedAt: h.now().UTC(),
	}
	if err := h.repo.SaveConsent(ctx, GetTenantID(ctx), consent); err != nil {
		writeStoreError(w, err, "consent")
		return
	}

	slog.Info("consent updated",
		"tenant_id", GetTenantID(ctx),
		"subject_id", consent.SubjectID,
		"given", given,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"subjectId": consent.SubjectID,
		"given":     given,
		"updatedAt": consent.UpdatedAt,
		"message":   message,
	})
}

// GetConsent returns the consent state of a subject.
func (h *Handler) GetConsent(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	c, err := h.repo.GetConsent(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "consent")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
