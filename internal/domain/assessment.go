package domain

import (
	"time"
)

// Assessment is the complete, persisted result of scoring one subject.
type Assessment struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	SubjectID  string    `json:"subjectId"`
	RecordID   string    `json:"recordId,omitempty"`
	ScoredAt   time.Time `json:"scoredAt"`
	ValidUntil time.Time `json:"validUntil"`

	TrustScore         int                `json:"trustScore"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	AssessmentStrength AssessmentStrength `json:"assessmentStrength"`
	RuleMatchLevel     MatchLevel         `json:"ruleMatchLevel"`
	TotalPoints        int                `json:"totalPoints"`
	MaxPoints          int                `json:"maxPoints"`
	RulesEvaluated     int                `json:"rulesEvaluated"`
	RulesSatisfied     int                `json:"rulesSatisfied"`
	RulesPartial       int                `json:"rulesPartial"`
	RulesNotMet        int                `json:"rulesNotMet"`
	PotentialScore     int                `json:"potentialScore"`

	// Record the assessment was computed from
	Record BehavioralRecord `json:"record"`

	RuleResults     []RuleResult     `json:"ruleResults"`
	Factors         []Factor         `json:"factors"`
	Summary         Summary          `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID             string `json:"traceId"`
	DocumentationMonths int    `json:"documentationMonths"`
	ScoringMs           int64  `json:"scoringMs"`
	TotalMs             int64  `json:"totalMs"`
	CatalogVersion      string `json:"catalogVersion"`
}

// Valid reports whether the assessment is still within its validity window.
func (a *Assessment) Valid(now time.Time) bool {
	return now.Before(a.ValidUntil)
}

// AssessmentResponse is the API response for a scoring request.
type AssessmentResponse struct {
	AssessmentID       string             `json:"assessmentId"`
	SubjectID          string             `json:"subjectId"`
	TenantID           string             `json:"tenantId"`
	TrustScore         int                `json:"trustScore"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	RiskColor          string             `json:"riskColor"`
	AssessmentStrength AssessmentStrength `json:"assessmentStrength"`
	RuleMatchLevel     MatchLevel         `json:"ruleMatchLevel"`
	RulesEvaluated     int                `json:"rulesEvaluated"`
	RulesSatisfied     int                `json:"rulesSatisfied"`
	RulesPartial       int                `json:"rulesPartial"`
	RulesNotMet        int                `json:"rulesNotMet"`
	TotalPoints        int                `json:"totalPoints"`
	MaxPoints          int                `json:"maxPoints"`
	ScoredAt           time.Time          `json:"scoredAt"`
	ValidUntil         time.Time          `json:"validUntil"`
	Message            string             `json:"message"`
	Metadata           AssessmentMetadata `json:"metadata"`
}

// ToResponse converts an Assessment to an API response.
func (a *Assessment) ToResponse() *AssessmentResponse {
	return &AssessmentResponse{
		AssessmentID:       a.ID,
		SubjectID:          a.SubjectID,
		TenantID:           a.TenantID,
		TrustScore:         a.TrustScore,
		RiskLevel:          a.RiskLevel,
		RiskColor:          a.RiskLevel.Color(),
		AssessmentStrength: a.AssessmentStrength,
		RuleMatchLevel:     a.RuleMatchLevel,
		RulesEvaluated:     a.RulesEvaluated,
		RulesSatisfied:     a.RulesSatisfied,
		RulesPartial:       a.RulesPartial,
		RulesNotMet:        a.RulesNotMet,
		TotalPoints:        a.TotalPoints,
		MaxPoints:          a.MaxPoints,
		ScoredAt:           a.ScoredAt,
		ValidUntil:         a.ValidUntil,
		Message:            "Your credit trust assessment has been completed. Assessment Strength: " + string(a.AssessmentStrength) + ".",
		Metadata:           a.Metadata,
	}
}

// FactorsOf returns the factors of the given type, in rank order.
func (a *Assessment) FactorsOf(t FactorType) []Factor {
	var out []Factor
	for _, f := range a.Factors {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}
