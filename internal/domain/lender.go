package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDecision is returned when a lender decision fails validation.
var ErrInvalidDecision = errors.New("invalid lender decision")

// MinJustificationLength is the shortest accepted written justification.
const MinJustificationLength = 20

// DecisionType is the human decision recorded by a lender.
type DecisionType string

const (
	DecisionApprove         DecisionType = "approve"
	DecisionRequestMoreData DecisionType = "request_more_data"
	DecisionDecline         DecisionType = "decline"
)

// LenderDecision is the audit record of a human lending decision.
type LenderDecision struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenantId"`
	SubjectID    string `json:"subjectId"`
	LenderID     string `json:"lenderId"`
	AssessmentID string `json:"assessmentId"`

	// Snapshot of the assessment at decision time
	Classification     string             `json:"classification"`
	TrustScore         int                `json:"trustScore"`
	AssessmentStrength AssessmentStrength `json:"assessmentStrength"`
	RuleMatchLevel     MatchLevel         `json:"ruleMatchLevel"`

	Decision      DecisionType `json:"decision"`
	Justification string       `json:"justification"`
	LoanAmount    *float64     `json:"loanAmount,omitempty"`
	InterestRate  *float64     `json:"interestRate,omitempty"`
	TermMonths    *int         `json:"termMonths,omitempty"`

	DecidedAt time.Time `json:"decidedAt"`
}

// Validate checks the human-supplied parts of a decision.
func (d *LenderDecision) Validate() error {
	if d.SubjectID == "" {
		return fmt.Errorf("%w: subjectId is required", ErrInvalidDecision)
	}
	if d.LenderID == "" {
		return fmt.Errorf("%w: lenderId is required", ErrInvalidDecision)
	}
	switch d.Decision {
	case DecisionApprove, DecisionRequestMoreData, DecisionDecline:
	default:
		return fmt.Errorf("%w: decision must be approve, request_more_data, or decline", ErrInvalidDecision)
	}
	if len([]rune(d.Justification)) < MinJustificationLength {
		return fmt.Errorf("%w: justification must be at least %d characters", ErrInvalidDecision, MinJustificationLength)
	}
	if d.LoanAmount != nil && *d.LoanAmount < 0 {
		return fmt.Errorf("%w: loanAmount must not be negative", ErrInvalidDecision)
	}
	if d.InterestRate != nil && (*d.InterestRate < 0 || *d.InterestRate > 100) {
		return fmt.Errorf("%w: interestRate must be between 0 and 100", ErrInvalidDecision)
	}
	if d.TermMonths != nil && *d.TermMonths <= 0 {
		return fmt.Errorf("%w: termMonths must be positive", ErrInvalidDecision)
	}
	return nil
}

// BehavioralMetric is one headline metric shown to lenders.
type BehavioralMetric struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Status string `json:"status"`
}

// LenderView is the decision-support summary for a subject.
type LenderView struct {
	SubjectID          string             `json:"subjectId"`
	AssessmentID       string             `json:"assessmentId"`
	TrustScore         int                `json:"trustScore"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	Classification     string             `json:"classification"`
	Advice             string             `json:"advice"`
	AssessmentStrength AssessmentStrength `json:"assessmentStrength"`
	RuleMatchLevel     MatchLevel         `json:"ruleMatchLevel"`
	TopTrustSignal     string             `json:"topTrustSignal"`
	KeyObservation     string             `json:"keyObservation"`
	Metrics            []BehavioralMetric `json:"behavioralMetrics"`
	RulesEvaluated     int                `json:"rulesEvaluated"`
	RulesSatisfied     int                `json:"rulesSatisfied"`
	RulesPartial       int                `json:"rulesPartial"`
	Policies           []PolicyResult     `json:"policies,omitempty"`
	ValidUntil         time.Time          `json:"validUntil"`
	ProgramNote        string             `json:"programNote"`
	ReviewedAt         time.Time          `json:"reviewedAt"`
}
