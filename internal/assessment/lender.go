package assessment

import (
	"fmt"
	"time"

	"github.com/opensource-finance/nexis/internal/domain"
)

// ProgramNote accompanies every lender view.
const ProgramNote = "This assessment is decision support only. Every lending decision requires a written justification from the reviewing lender, as per regulatory guidelines."

// LenderView builds the decision-support summary lenders review.
func LenderView(a *domain.Assessment, policies []domain.PolicyResult, now time.Time) *domain.LenderView {
	view := &domain.LenderView{
		SubjectID:          a.SubjectID,
		AssessmentID:       a.ID,
		TrustScore:         a.TrustScore,
		RiskLevel:          a.RiskLevel,
		Classification:     a.RiskLevel.Classification(),
		Advice:             a.RiskLevel.Advice(),
		AssessmentStrength: a.AssessmentStrength,
		RuleMatchLevel:     a.RuleMatchLevel,
		TopTrustSignal:     "Limited data",
		KeyObservation:     "No major concerns",
		Metrics:            Metrics(&a.Record),
		RulesEvaluated:     a.RulesEvaluated,
		RulesSatisfied:     a.RulesSatisfied,
		RulesPartial:       a.RulesPartial,
		Policies:           policies,
		ValidUntil:         a.ValidUntil,
		ProgramNote:        ProgramNote,
		ReviewedAt:         now.UTC(),
	}

	if positive := a.FactorsOf(domain.FactorPositive); len(positive) > 0 {
		view.TopTrustSignal = positive[0].Title
	}
	if negative := a.FactorsOf(domain.FactorNegative); len(negative) > 0 {
		view.KeyObservation = negative[0].Title
	}

	return view
}

// Metrics returns the headline behavioral metrics of a record.
func Metrics(r *domain.BehavioralRecord) []domain.BehavioralMetric {
	volatility := "Moderate"
	if r.SpendingVolatility < 0.3 {
		volatility = "Stable"
	}

	tenure := "New"
	if r.AccountTenureMonths >= 24 {
		tenure = "Established"
	}

	discretionary := "Limited"
	if r.DiscretionaryIncomeRatio >= 0.15 {
		discretionary = "Healthy"
	}

	return []domain.BehavioralMetric{
		{
			Label:  "Spending Volatility",
			Value:  fmt.Sprintf("%.0f%%", r.SpendingVolatility*100),
			Status: volatility,
		},
		{
			Label:  "Account Tenure",
			Value:  fmt.Sprintf("%.1f yrs", float64(r.AccountTenureMonths)/12),
			Status: tenure,
		},
		{
			Label:  "Discretionary Income Ratio",
			Value:  fmt.Sprintf("%.0f%%", r.DiscretionaryIncomeRatio*100),
			Status: discretionary,
		},
	}
}

// Snapshot fills the assessment fields of a lender decision.
func Snapshot(d *domain.LenderDecision, a *domain.Assessment) {
	d.AssessmentID = a.ID
	d.Classification = a.RiskLevel.Classification()
	d.TrustScore = a.TrustScore
	d.AssessmentStrength = a.AssessmentStrength
	d.RuleMatchLevel = a.RuleMatchLevel
}
