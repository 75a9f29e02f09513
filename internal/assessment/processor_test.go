package assessment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/nexis/internal/domain"
)

func mixedRecord() domain.BehavioralRecord {
	return domain.BehavioralRecord{
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
		DiscretionaryIncomeRatio:   0.22,
	}
}

func poorRecord() domain.BehavioralRecord {
	return domain.BehavioralRecord{
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
		DiscretionaryIncomeRatio:   0.05,
	}
}

func fixedProcessor(at time.Time) *Processor {
	p := NewProcessor(nil, 0)
	p.now = func() time.Time { return at }
	return p
}

func TestProcessorValidate(t *testing.T) {
	require.NoError(t, NewProcessor(nil, 0).Validate())
}

func TestProcessMixedRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := fixedProcessor(at)

	a, err := p.Process(context.Background(), &Input{
		TenantID:  "tenant-001",
		SubjectID: "subject-001",
		RecordID:  "record-001",
		TraceID:   "trace-001",
		Record:    mixedRecord(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "tenant-001", a.TenantID)
	assert.Equal(t, "subject-001", a.SubjectID)
	assert.Equal(t, "record-001", a.RecordID)
	assert.Equal(t, at, a.ScoredAt)
	assert.Equal(t, at.Add(DefaultValidity), a.ValidUntil)

	assert.Equal(t, 714, a.TrustScore)
	assert.Equal(t, domain.RiskLow, a.RiskLevel)
	assert.Equal(t, 241, a.TotalPoints)
	assert.Equal(t, 360, a.MaxPoints)
	assert.Equal(t, 12, a.RulesEvaluated)
	assert.Equal(t, 5, a.RulesSatisfied)
	assert.Equal(t, 5, a.RulesPartial)
	assert.Equal(t, 2, a.RulesNotMet)
	assert.Equal(t, 787, a.PotentialScore)

	// 11 of 12 rule fields are positive, documented for 40 months.
	assert.Equal(t, domain.StrengthModerate, a.AssessmentStrength)
	assert.Equal(t, domain.MatchLow, a.RuleMatchLevel)

	assert.Len(t, a.RuleResults, 12)
	assert.Len(t, a.Factors, 8)
	assert.Equal(t, 241, a.Summary.TotalPoints)

	require.Len(t, a.Recommendations, 3)
	assert.Equal(t, "A2", a.Recommendations[0].RuleID)
	assert.Equal(t, "B2", a.Recommendations[1].RuleID)
	assert.Equal(t, "D2", a.Recommendations[2].RuleID)

	assert.Equal(t, "trace-001", a.Metadata.TraceID)
	assert.Equal(t, 40, a.Metadata.DocumentationMonths)
	assert.Equal(t, "2024.1", a.Metadata.CatalogVersion)
}

func TestProcessDocumentationMonthsOverride(t *testing.T) {
	p := NewProcessor(nil, 0)
	months := 6

	a, err := p.Process(context.Background(), &Input{
		SubjectID:           "subject-001",
		Record:              mixedRecord(),
		DocumentationMonths: &months,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, a.Metadata.DocumentationMonths)
	assert.Equal(t, domain.StrengthWeak, a.AssessmentStrength)
}

func TestProcessRejectsInvalidInput(t *testing.T) {
	p := NewProcessor(nil, 0)

	bad := mixedRecord()
	bad.SpendingVolatility = 1.5
	_, err := p.Process(context.Background(), &Input{SubjectID: "subject-001", Record: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	_, err = p.Process(context.Background(), &Input{Record: mixedRecord()})
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestProcessIsDeterministic(t *testing.T) {
	p := NewProcessor(nil, 30*24*time.Hour)
	in := &Input{SubjectID: "subject-001", Record: poorRecord()}

	first, err := p.Process(context.Background(), in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := p.Process(context.Background(), in)
			assert.NoError(t, err)
			assert.NotEqual(t, first.ID, a.ID)
			assert.Equal(t, first.TrustScore, a.TrustScore)
			assert.Equal(t, first.RuleResults, a.RuleResults)
			assert.Equal(t, first.Factors, a.Factors)
			assert.Equal(t, first.Recommendations, a.Recommendations)
		}()
	}
	wg.Wait()

	assert.Equal(t, 497, first.TrustScore)
	assert.Equal(t, domain.RiskHigh, first.RiskLevel)
	assert.Equal(t, 607, first.PotentialScore)
	assert.Equal(t, 30*24*time.Hour, first.ValidUntil.Sub(first.ScoredAt))
}

func TestRoadmap(t *testing.T) {
	a, err := NewProcessor(nil, 0).Process(context.Background(), &Input{SubjectID: "s", Record: poorRecord()})
	require.NoError(t, err)

	steps := Roadmap(a)
	require.Len(t, steps, 3)
	assert.Equal(t, domain.RoadmapOngoing, steps[0].Status)
	assert.Equal(t, domain.RoadmapNext, steps[1].Status)
	assert.Equal(t, domain.RoadmapFuture, steps[2].Status)
}
