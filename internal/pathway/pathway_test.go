package pathway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/narrative"
	"github.com/opensource-finance/nexis/internal/rules"
)

func poorRecord() *domain.BehavioralRecord {
	return &domain.BehavioralRecord{
		UtilityPaymentMonths:       3,
		UtilityPaymentConsistency:  0.45,
		MonthlyTransactionCount:    8,
		TransactionRegularityScore: 0.35,
		SpendingVolatility:         0.75,
		WithdrawalDisciplineScore:  0.30,
		AvgMonthEndBalance:         500,
		SavingsGrowthRate:          -0.10,
		IncomeRegularityScore:      0.40,
		IncomeStabilityMonths:      4,
		AccountTenureMonths:        6,
		AddressStabilityYears:      0.5,
	}
}

func mixedRecord() *domain.BehavioralRecord {
	return &domain.BehavioralRecord{
		UtilityPaymentMonths:       24,
		UtilityPaymentConsistency:  0.70,
		MonthlyTransactionCount:    30,
		TransactionRegularityScore: 0.40,
		SpendingVolatility:         0.125,
		WithdrawalDisciplineScore:  0.66,
		AvgMonthEndBalance:         12500,
		SavingsGrowthRate:          -0.02,
		IncomeRegularityScore:      0.90,
		IncomeStabilityMonths:      8,
		AccountTenureMonths:        40,
		AddressStabilityYears:      1.5,
	}
}

func perfectRecord() *domain.BehavioralRecord {
	return &domain.BehavioralRecord{
		UtilityPaymentMonths:       24,
		UtilityPaymentConsistency:  0.98,
		MonthlyTransactionCount:    50,
		TransactionRegularityScore: 0.90,
		SpendingVolatility:         0.10,
		WithdrawalDisciplineScore:  0.85,
		AvgMonthEndBalance:         8000,
		SavingsGrowthRate:          0.15,
		IncomeRegularityScore:      0.92,
		IncomeStabilityMonths:      24,
		AccountTenureMonths:        48,
		AddressStabilityYears:      5.0,
	}
}

func score(r *domain.BehavioralRecord) domain.ScoreResult {
	return rules.NewEngine(nil).Evaluate(r)
}

func resultFor(t *testing.T, r *domain.BehavioralRecord, ruleID string) domain.RuleResult {
	t.Helper()
	for _, rr := range score(r).Results {
		if rr.RuleID == ruleID {
			return rr
		}
	}
	t.Fatalf("rule %s not evaluated", ruleID)
	return domain.RuleResult{}
}

func TestValidateGuidance(t *testing.T) {
	require.NoError(t, New(nil).Validate())
}

func TestRecommendPoorProfile(t *testing.T) {
	s := score(poorRecord())
	g := New(nil)
	recs := g.Recommend(s.Results, s.TrustScore)

	require.Len(t, recs, 3)
	assert.Equal(t, "A1", recs[0].RuleID)
	assert.Equal(t, "A2", recs[1].RuleID)
	assert.Equal(t, "C1", recs[2].RuleID)

	a1 := recs[0]
	assert.Equal(t, "Extend Utility Payment History", a1.Action)
	assert.Equal(t, 30, a1.ScoreImpact)
	assert.Equal(t, 9.0, a1.Gap)
	assert.Equal(t, domain.GapMonths, a1.GapUnit)
	assert.Equal(t, "9 months", a1.Timeframe)
	assert.Equal(t, domain.DifficultyMedium, a1.Difficulty)
	assert.Equal(t, "Maintain on-time utility payments for 9 additional consecutive months", a1.CompletionCriteria)
	assert.Equal(t, "Currently at 3, target is 12", a1.Description)

	c1 := recs[2]
	assert.InDelta(t, 0.45, c1.Gap, 1e-9)
	assert.Equal(t, domain.GapPercentage, c1.GapUnit)
	assert.Equal(t, "2-4 months", c1.Timeframe)
	assert.Equal(t, "Maintain spending volatility below 30.0% for 2-4 months", c1.CompletionCriteria)

	assert.Equal(t, 607, g.PotentialScore(s.TrustScore, recs))
}

func TestRecommendMixedProfile(t *testing.T) {
	s := score(mixedRecord())
	g := New(nil)
	recs := g.Recommend(s.Results, s.TrustScore)

	require.Len(t, recs, 3)
	// Four rules tie at 20 unrealized points; catalog order decides.
	assert.Equal(t, []string{"A2", "B2", "D2"}, []string{recs[0].RuleID, recs[1].RuleID, recs[2].RuleID})

	a2 := recs[0]
	assert.InDelta(t, 0.05, a2.Gap, 1e-9)
	assert.Equal(t, domain.DifficultyMedium, a2.Difficulty)
	assert.Equal(t, "Achieve 75% payment consistency over the next 2-4 months", a2.CompletionCriteria)
	assert.Equal(t, "Currently at 70%, target is 75%", a2.Description)

	d2 := recs[2]
	assert.InDelta(t, 0.07, d2.Gap, 1e-9)
	assert.Equal(t, "3-6 months", d2.Timeframe)
	assert.Equal(t, domain.DifficultyMedium, d2.Difficulty)
	assert.Equal(t, "Achieve 5.0%+ monthly savings growth for 3-6 months", d2.CompletionCriteria)

	assert.Equal(t, 714, s.TrustScore)
	assert.Equal(t, 787, g.PotentialScore(s.TrustScore, recs))
}

func TestRecommendPerfectProfile(t *testing.T) {
	s := score(perfectRecord())
	recs := New(nil).Recommend(s.Results, s.TrustScore)
	assert.Empty(t, recs)
	assert.Equal(t, 847, s.TrustScore)
	assert.Equal(t, 847, New(nil).PotentialScore(s.TrustScore, recs))
}

func TestRecommendationInvariants(t *testing.T) {
	g := New(nil)
	for name, record := range map[string]*domain.BehavioralRecord{
		"poor":  poorRecord(),
		"mixed": mixedRecord(),
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			s := score(record)
			recs := g.Recommend(s.Results, s.TrustScore)

			assert.LessOrEqual(t, len(recs), 3)
			for i, rec := range recs {
				assert.Positive(t, rec.ScoreImpact)
				assert.NotEmpty(t, rec.Verification)
				assert.GreaterOrEqual(t, len(rec.Tips), 2)
				assert.Regexp(t, `\d`, rec.CompletionCriteria)
				if i > 0 {
					assert.GreaterOrEqual(t, recs[i-1].ScoreImpact, rec.ScoreImpact)
				}

				for _, text := range append([]string{rec.Action, rec.Description, rec.CompletionCriteria, rec.Verification, rec.Timeframe}, rec.Tips...) {
					assert.NoError(t, narrative.CheckDeterministic(text))
				}
			}

			potential := g.PotentialScore(s.TrustScore, recs)
			assert.Greater(t, potential, s.TrustScore)
			assert.LessOrEqual(t, potential, 860)
		})
	}
}

func TestDurationTimeframes(t *testing.T) {
	tests := []struct {
		name       string
		record     *domain.BehavioralRecord
		ruleID     string
		gap        float64
		timeframe  string
		difficulty domain.Difficulty
	}{
		{"tenure from scratch", &domain.BehavioralRecord{}, "F1", 24, "24 months", domain.DifficultyHard},
		{"utility from scratch", &domain.BehavioralRecord{}, "A1", 12, "12 months", domain.DifficultyMedium},
		{"income almost there", &domain.BehavioralRecord{IncomeStabilityMonths: 11}, "E2", 1, "1 month", domain.DifficultyEasy},
		{"income at required level", &domain.BehavioralRecord{IncomeStabilityMonths: 14}, "E2", 0, "Under 1 month", domain.DifficultyEasy},
		{"address half a year short", &domain.BehavioralRecord{AddressStabilityYears: 1.5}, "F2", 0.5, "6 months", domain.DifficultyEasy},
		{"address from scratch", &domain.BehavioralRecord{}, "F2", 2, "24 months", domain.DifficultyEasy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := resultFor(t, tt.record, tt.ruleID)
			rec := recommendation(rr, guidanceTable[tt.ruleID])

			assert.InDelta(t, tt.gap, rec.Gap, 1e-9)
			assert.Equal(t, tt.timeframe, rec.Timeframe)
			assert.Equal(t, tt.difficulty, rec.Difficulty)
		})
	}
}

func TestAddressCriteriaInMonths(t *testing.T) {
	rr := resultFor(t, &domain.BehavioralRecord{AddressStabilityYears: 1.5}, "F2")
	rec := recommendation(rr, guidanceTable["F2"])

	assert.Equal(t, domain.GapYears, rec.GapUnit)
	assert.Equal(t, "Maintain current address for 6 additional months", rec.CompletionCriteria)
}

func TestInverseGapIsSigned(t *testing.T) {
	// 20% volatility already sits under the 30% ceiling but short of 15%.
	rr := resultFor(t, &domain.BehavioralRecord{SpendingVolatility: 0.20}, "C1")
	require.Equal(t, domain.StatusPartiallySatisfied, rr.Status)

	rec := recommendation(rr, guidanceTable["C1"])
	assert.InDelta(t, -0.10, rec.Gap, 1e-9)
	assert.Equal(t, 10, rec.ScoreImpact)
	assert.Equal(t, domain.DifficultyEasy, rec.Difficulty)
}

func TestRecommendSkipsRulesWithoutGuidance(t *testing.T) {
	results := []domain.RuleResult{
		{RuleID: "Z9", Status: domain.StatusNotSatisfied, PointsEarned: 0, MaxPoints: 100},
		{RuleID: "B1", RuleName: "Digital Transaction Activity", Status: domain.StatusNotSatisfied,
			Polarity: domain.HigherIsBetter, Value: 5, RequiredThreshold: 25, PointsEarned: 5, MaxPoints: 30},
	}

	recs := New(nil).Recommend(results, 500)
	require.Len(t, recs, 1)
	assert.Equal(t, "B1", recs[0].RuleID)
	assert.Equal(t, "Maintain 25+ digital transactions monthly for 2-4 months", recs[0].CompletionCriteria)
}

func TestRecommendDoesNotShareTips(t *testing.T) {
	s := score(poorRecord())
	recs := New(nil).Recommend(s.Results, s.TrustScore)
	recs[0].Tips[0] = "mutated"

	assert.NotEqual(t, "mutated", guidanceTable[recs[0].RuleID].Tips[0])
}

func TestPotentialScore(t *testing.T) {
	g := New(nil)
	impacts := func(points ...int) []domain.Recommendation {
		recs := make([]domain.Recommendation, len(points))
		for i, p := range points {
			recs[i].ScoreImpact = p
		}
		return recs
	}

	assert.Equal(t, 500, g.PotentialScore(500, nil))
	assert.Equal(t, 501, g.PotentialScore(500, impacts(1)))          // 1.22
	assert.Equal(t, 504, g.PotentialScore(500, impacts(3)))          // 3.67
	assert.Equal(t, 511, g.PotentialScore(500, impacts(9)))          // 11.00
	assert.Equal(t, 573, g.PotentialScore(500, impacts(30, 20, 10))) // 73.33
	assert.Equal(t, 860, g.PotentialScore(850, impacts(30)))
}

func TestRoadmap(t *testing.T) {
	s := score(poorRecord())
	steps := Roadmap(New(nil).Recommend(s.Results, s.TrustScore))

	require.Len(t, steps, 3)
	assert.Equal(t, domain.RoadmapOngoing, steps[0].Status)
	assert.Equal(t, domain.RoadmapNext, steps[1].Status)
	assert.Equal(t, domain.RoadmapFuture, steps[2].Status)
	assert.Equal(t, "Extend Utility Payment History", steps[0].Title)
	assert.Equal(t, "Currently at 3, target is 12 - Will add +30 points", steps[0].Description)

	assert.Empty(t, Roadmap(nil))
}
