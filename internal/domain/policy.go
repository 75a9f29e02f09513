package domain

import "time"

// LenderPolicy is a tenant-defined CEL expression evaluated against an assessment.
// Policies are advisory: they annotate the lender view, they never decide.
type LenderPolicy struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Outcome bands for value-to-outcome mapping
	Bands []PolicyBand `json:"bands"`

	// Whether policy is active
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt"`
}

// PolicyBand maps a value range to an outcome.
type PolicyBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // e.g., ".eligible", ".review", ".ineligible"
	Reason     string   `json:"reason"`
}

// PolicyResult is the output of a policy evaluation.
type PolicyResult struct {
	PolicyID  string  `json:"policyId"`
	Name      string  `json:"name"`
	Outcome   string  `json:"outcome"`
	Value     float64 `json:"value"` // The computed value
	Reason    string  `json:"reason"`
	ProcessMs int64   `json:"processMs"`
}

// Predefined policy outcomes
const (
	PolicyOutcomeEligible   = ".eligible"
	PolicyOutcomeReview     = ".review"
	PolicyOutcomeIneligible = ".ineligible"
	PolicyOutcomeError      = ".err"
)
