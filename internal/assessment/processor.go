// Package assessment turns a behavioral record into a complete, stored
// assessment: score, explanation and improvement pathway.
package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/explain"
	"github.com/opensource-finance/nexis/internal/pathway"
	"github.com/opensource-finance/nexis/internal/rules"
)

// DefaultValidity is how long an assessment stays current when no window is configured.
const DefaultValidity = 90 * 24 * time.Hour

var tracer = otel.Tracer("github.com/opensource-finance/nexis/internal/assessment")

// Processor composes the scoring engine, the explainer and the pathway generator.
type Processor struct {
	engine    *rules.Engine
	explainer *explain.Explainer
	pathways  *pathway.Generator
	validity  time.Duration

	// now is replaced in tests
	now func() time.Time
}

// NewProcessor creates a processor over catalog. A nil catalog selects
// rules.Default(); a non-positive validity selects DefaultValidity.
func NewProcessor(catalog *rules.Catalog, validity time.Duration) *Processor {
	if catalog == nil {
		catalog = rules.Default()
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Processor{
		engine:    rules.NewEngine(catalog),
		explainer: explain.New(catalog),
		pathways:  pathway.New(catalog),
		validity:  validity,
		now:       time.Now,
	}
}

// Validate checks that every rule has narrative templates and guidance.
// Call it once at startup.
func (p *Processor) Validate() error {
	if err := p.explainer.Validate(); err != nil {
		return err
	}
	return p.pathways.Validate()
}

// Catalog returns the catalog assessments are scored against.
func (p *Processor) Catalog() *rules.Catalog {
	return p.engine.Catalog()
}

// Input contains everything needed for one assessment.
type Input struct {
	TenantID  string
	SubjectID string
	RecordID  string
	TraceID   string
	Record    domain.BehavioralRecord

	// DocumentationMonths defaults to the account tenure when nil.
	DocumentationMonths *int

	StartTime time.Time
}

// Process validates the record and produces an assessment. The result
// depends only on the record and the catalog, apart from identifiers
// and timestamps.
func (p *Processor) Process(ctx context.Context, in *Input) (*domain.Assessment, error) {
	if err := in.Record.Validate(); err != nil {
		return nil, err
	}
	if in.SubjectID == "" {
		return nil, fmt.Errorf("%w: subjectId is required", domain.ErrInvalidRecord)
	}

	_, span := tracer.Start(ctx, "assessment.process")
	defer span.End()

	startTime := in.StartTime
	if startTime.IsZero() {
		startTime = p.now()
	}
	start := p.now()

	months := in.Record.AccountTenureMonths
	if in.DocumentationMonths != nil {
		months = *in.DocumentationMonths
	}

	score := p.engine.Evaluate(&in.Record)
	settings := p.Catalog().Settings()
	recs := p.pathways.Recommend(score.Results, score.TrustScore)

	scoredAt := p.now().UTC()
	a := &domain.Assessment{
		ID:         uuid.New().String(),
		TenantID:   in.TenantID,
		SubjectID:  in.SubjectID,
		RecordID:   in.RecordID,
		ScoredAt:   scoredAt,
		ValidUntil: scoredAt.Add(p.validity),

		TrustScore:         score.TrustScore,
		RiskLevel:          score.RiskLevel,
		AssessmentStrength: p.engine.AssessmentStrength(&in.Record, months),
		RuleMatchLevel:     rules.RuleMatchLevel(score.RulesSatisfied, score.RulesEvaluated),
		TotalPoints:        score.TotalPoints,
		MaxPoints:          score.MaxPoints,
		RulesEvaluated:     score.RulesEvaluated,
		RulesSatisfied:     score.RulesSatisfied,
		RulesPartial:       score.RulesPartial,
		RulesNotMet:        score.RulesNotMet,
		PotentialScore:     p.pathways.PotentialScore(score.TrustScore, recs),

		Record:          in.Record,
		RuleResults:     score.Results,
		Factors:         p.explainer.Explain(score.Results, settings.TopFactors),
		Summary:         p.explainer.Summarize(score.Results),
		Recommendations: recs,
	}

	a.Metadata = domain.AssessmentMetadata{
		TraceID:             in.TraceID,
		DocumentationMonths: months,
		ScoringMs:           p.now().Sub(start).Milliseconds(),
		TotalMs:             p.now().Sub(startTime).Milliseconds(),
		CatalogVersion:      settings.Version,
	}

	span.SetAttributes(
		attribute.String("assessment.id", a.ID),
		attribute.Int("assessment.trust_score", a.TrustScore),
		attribute.String("assessment.risk_level", string(a.RiskLevel)),
	)

	return a, nil
}

// Roadmap lays the recommendations of an assessment out on a timeline.
func Roadmap(a *domain.Assessment) []domain.RoadmapStep {
	return pathway.Roadmap(a.Recommendations)
}
