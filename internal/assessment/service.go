package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/nexis/internal/bus"
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/repository"
)

var (
	// ErrConsentRequired is returned when a subject has not agreed to be assessed.
	ErrConsentRequired = errors.New("subject consent required")

	// ErrNoAssessment is returned when a subject has never been assessed.
	ErrNoAssessment = errors.New("no assessment found")
)

// Service runs the processor and persists, caches and announces the result.
// Repository, cache and bus are optional.
type Service struct {
	processor      *Processor
	repo           domain.Repository
	cache          domain.Cache
	bus            domain.EventBus
	requireConsent bool
	cacheTTL       time.Duration
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Repository     domain.Repository
	Cache          domain.Cache
	Bus            domain.EventBus
	RequireConsent bool
	CacheTTL       time.Duration
}

// NewService creates an assessment service.
func NewService(processor *Processor, opts ServiceOptions) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		processor:      processor,
		repo:           opts.Repository,
		cache:          opts.Cache,
		bus:            opts.Bus,
		requireConsent: opts.RequireConsent,
		cacheTTL:       ttl,
	}
}

// Processor returns the underlying processor.
func (s *Service) Processor() *Processor {
	return s.processor
}

// Assess scores a request end to end. Storage failures are returned;
// cache and bus failures are logged.
func (s *Service) Assess(ctx context.Context, tenantID string, req *domain.AssessmentRequest, traceID string) (*domain.Assessment, error) {
	start := time.Now()

	if err := s.CheckConsent(ctx, tenantID, req.SubjectID); err != nil {
		if errors.Is(err, ErrConsentRequired) {
			recordRejected(ctx, "consent")
		}
		return nil, err
	}

	recordID := uuid.New().String()
	in := &Input{
		TenantID:            tenantID,
		SubjectID:           req.SubjectID,
		RecordID:            recordID,
		TraceID:             traceID,
		Record:              req.Record,
		DocumentationMonths: req.DocumentationMonths,
		StartTime:           start,
	}

	a, err := s.processor.Process(ctx, in)
	if err != nil {
		recordRejected(ctx, "invalid")
		return nil, err
	}

	if s.repo != nil {
		rec := &domain.SubjectRecord{
			ID:        recordID,
			SubjectID: req.SubjectID,
			Record:    req.Record,
			CreatedAt: a.ScoredAt,
		}
		if err := s.repo.SaveRecord(ctx, tenantID, rec); err != nil {
			return nil, fmt.Errorf("failed to save record: %w", err)
		}
		if err := s.repo.SaveAssessment(ctx, tenantID, a); err != nil {
			return nil, fmt.Errorf("failed to save assessment: %w", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.SetAssessment(ctx, tenantID, a.SubjectID, a, s.cacheTTL); err != nil {
			slog.Warn("failed to cache assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	if s.bus != nil {
		evt := domain.AssessmentCompleted{
			RequestID:    req.RequestID,
			AssessmentID: a.ID,
			SubjectID:    a.SubjectID,
			TrustScore:   a.TrustScore,
			RiskLevel:    a.RiskLevel,
		}
		if err := bus.PublishJSON(ctx, s.bus, tenantID, domain.TopicAssessmentCompleted, evt); err != nil {
			slog.Warn("failed to publish assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	elapsed := time.Since(start)
	recordCompleted(ctx, a, elapsed)

	slog.Info("assessment completed",
		"assessment_id", a.ID,
		"tenant_id", tenantID,
		"subject_id", a.SubjectID,
		"trust_score", a.TrustScore,
		"risk_level", a.RiskLevel,
		"trace_id", traceID,
		"duration_ms", elapsed.Milliseconds(),
	)

	return a, nil
}

// CheckConsent fails with ErrConsentRequired when consent is enforced
// and the subject has not given it.
func (s *Service) CheckConsent(ctx context.Context, tenantID, subjectID string) error {
	if !s.requireConsent {
		return nil
	}
	if s.repo == nil {
		return fmt.Errorf("%w: no consent store configured", ErrConsentRequired)
	}

	c, err := s.repo.GetConsent(ctx, tenantID, subjectID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w for subject %s", ErrConsentRequired, subjectID)
	case err != nil:
		return fmt.Errorf("failed to read consent: %w", err)
	case !c.Given:
		return fmt.Errorf("%w for subject %s", ErrConsentRequired, subjectID)
	}
	return nil
}

// Latest returns the newest assessment of a subject, from cache when possible.
func (s *Service) Latest(ctx context.Context, tenantID, subjectID string) (*domain.Assessment, error) {
	if s.cache != nil {
		if a, err := s.cache.GetAssessment(ctx, tenantID, subjectID); err == nil && a != nil {
			return a, nil
		}
	}

	if s.repo == nil {
		return nil, ErrNoAssessment
	}

	a, err := s.repo.GetLatestAssessment(ctx, tenantID, subjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNoAssessment, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest assessment: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetAssessment(ctx, tenantID, subjectID, a, s.cacheTTL); err != nil {
			slog.Warn("failed to cache assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}
	return a, nil
}
