package domain

// RiskLevel buckets a trust score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// Color is the traffic-light color shown next to a risk level.
func (r RiskLevel) Color() string {
	switch r {
	case RiskLow:
		return "green"
	case RiskModerate:
		return "yellow"
	default:
		return "red"
	}
}

// Classification is the advisory label shown to lenders.
func (r RiskLevel) Classification() string {
	return string(r) + " Risk"
}

// Advice is the advisory guidance shown to lenders. It never replaces
// a human decision.
func (r RiskLevel) Advice() string {
	switch r {
	case RiskLow:
		return "Qualified with Guidance"
	case RiskModerate:
		return "Request Additional Information"
	default:
		return "High Risk - Proceed with Caution"
	}
}

// AssessmentStrength describes how much data backs an assessment.
type AssessmentStrength string

const (
	StrengthStrong   AssessmentStrength = "Strong"
	StrengthModerate AssessmentStrength = "Moderate"
	StrengthWeak     AssessmentStrength = "Weak"
)

// MatchLevel buckets the share of fully satisfied rules.
type MatchLevel string

const (
	MatchHigh   MatchLevel = "High"
	MatchMedium MatchLevel = "Medium"
	MatchLow    MatchLevel = "Low"
)

// ScoreResult is the aggregate of one scoring call.
type ScoreResult struct {
	TrustScore     int          `json:"trustScore"`
	RiskLevel      RiskLevel    `json:"riskLevel"`
	TotalPoints    int          `json:"totalPoints"`
	MaxPoints      int          `json:"maxPoints"`
	Results        []RuleResult `json:"ruleResults"`
	RulesEvaluated int          `json:"rulesEvaluated"`
	RulesSatisfied int          `json:"rulesSatisfied"`
	RulesPartial   int          `json:"rulesPartial"`
	RulesNotMet    int          `json:"rulesNotMet"`
}
