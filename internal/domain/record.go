package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRecord is returned when a behavioral record is out of range.
var ErrInvalidRecord = errors.New("invalid behavioral record")

// BehavioralRecord holds one person's observed financial behavior at a point in time.
// Fields that were not observed are left at zero.
type BehavioralRecord struct {
	// Payment discipline
	UtilityPaymentMonths      int     `json:"utilityPaymentMonths" yaml:"utilityPaymentMonths"`
	UtilityPaymentConsistency float64 `json:"utilityPaymentConsistency" yaml:"utilityPaymentConsistency"`

	// Financial engagement
	MonthlyTransactionCount    int     `json:"monthlyTransactionCount" yaml:"monthlyTransactionCount"`
	TransactionRegularityScore float64 `json:"transactionRegularityScore" yaml:"transactionRegularityScore"`

	// Financial discipline
	SpendingVolatility        float64 `json:"spendingVolatility" yaml:"spendingVolatility"`
	WithdrawalDisciplineScore float64 `json:"withdrawalDisciplineScore" yaml:"withdrawalDisciplineScore"`

	// Savings behavior
	AvgMonthEndBalance float64 `json:"avgMonthEndBalance" yaml:"avgMonthEndBalance"`
	SavingsGrowthRate  float64 `json:"savingsGrowthRate" yaml:"savingsGrowthRate"`

	// Income stability
	IncomeRegularityScore float64 `json:"incomeRegularityScore" yaml:"incomeRegularityScore"`
	IncomeStabilityMonths int     `json:"incomeStabilityMonths" yaml:"incomeStabilityMonths"`

	// Historical stability
	AccountTenureMonths   int     `json:"accountTenureMonths" yaml:"accountTenureMonths"`
	AddressStabilityYears float64 `json:"addressStabilityYears" yaml:"addressStabilityYears"`

	// Reported to lenders only, no rule reads it.
	DiscretionaryIncomeRatio float64 `json:"discretionaryIncomeRatio" yaml:"discretionaryIncomeRatio"`
}

// Validate checks field ranges. The scoring engine never calls it: range
// checks belong to whoever accepts the record from the outside world.
func (r *BehavioralRecord) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"utilityPaymentMonths", float64(r.UtilityPaymentMonths), 0, 120},
		{"utilityPaymentConsistency", r.UtilityPaymentConsistency, 0, 1},
		{"monthlyTransactionCount", float64(r.MonthlyTransactionCount), 0, 10000},
		{"transactionRegularityScore", r.TransactionRegularityScore, 0, 1},
		{"spendingVolatility", r.SpendingVolatility, 0, 1},
		{"withdrawalDisciplineScore", r.WithdrawalDisciplineScore, 0, 1},
		{"avgMonthEndBalance", r.AvgMonthEndBalance, 0, 1e12},
		{"savingsGrowthRate", r.SavingsGrowthRate, -1, 1},
		{"incomeRegularityScore", r.IncomeRegularityScore, 0, 1},
		{"incomeStabilityMonths", float64(r.IncomeStabilityMonths), 0, 120},
		{"accountTenureMonths", float64(r.AccountTenureMonths), 0, 600},
		{"addressStabilityYears", r.AddressStabilityYears, 0, 50},
		{"discretionaryIncomeRatio", r.DiscretionaryIncomeRatio, 0, 1},
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s must be between %g and %g, got %g",
				ErrInvalidRecord, c.name, c.min, c.max, c.value)
		}
	}
	return nil
}

// SubjectRecord is a stored behavioral record for one subject.
type SubjectRecord struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	SubjectID string           `json:"subjectId"`
	Record    BehavioralRecord `json:"record"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Consent records whether a subject agreed to be assessed.
type Consent struct {
	TenantID  string    `json:"tenantId"`
	SubjectID string    `json:"subjectId"`
	Given     bool      `json:"given"`
	UpdatedAt time.Time `json:"updatedAt"`
}
