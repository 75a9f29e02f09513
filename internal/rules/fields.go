package rules

import "github.com/opensource-finance/nexis/internal/domain"

// Record field names as referenced by rule definitions.
const (
	FieldUtilityPaymentMonths       = "utility_payment_months"
	FieldUtilityPaymentConsistency  = "utility_payment_consistency"
	FieldMonthlyTransactionCount    = "monthly_transaction_count"
	FieldTransactionRegularityScore = "transaction_regularity_score"
	FieldSpendingVolatility         = "spending_volatility"
	FieldWithdrawalDisciplineScore  = "withdrawal_discipline_score"
	FieldAvgMonthEndBalance         = "avg_month_end_balance"
	FieldSavingsGrowthRate          = "savings_growth_rate"
	FieldIncomeRegularityScore      = "income_regularity_score"
	FieldIncomeStabilityMonths      = "income_stability_months"
	FieldAccountTenureMonths        = "account_tenure_months"
	FieldAddressStabilityYears      = "address_stability_years"
	FieldDiscretionaryIncomeRatio   = "discretionary_income_ratio"
)

type fieldReader func(r *domain.BehavioralRecord) float64

var recordFields = map[string]fieldReader{
	FieldUtilityPaymentMonths:       func(r *domain.BehavioralRecord) float64 { return float64(r.UtilityPaymentMonths) },
	FieldUtilityPaymentConsistency:  func(r *domain.BehavioralRecord) float64 { return r.UtilityPaymentConsistency },
	FieldMonthlyTransactionCount:    func(r *domain.BehavioralRecord) float64 { return float64(r.MonthlyTransactionCount) },
	FieldTransactionRegularityScore: func(r *domain.BehavioralRecord) float64 { return r.TransactionRegularityScore },
	FieldSpendingVolatility:         func(r *domain.BehavioralRecord) float64 { return r.SpendingVolatility },
	FieldWithdrawalDisciplineScore:  func(r *domain.BehavioralRecord) float64 { return r.WithdrawalDisciplineScore },
	FieldAvgMonthEndBalance:         func(r *domain.BehavioralRecord) float64 { return r.AvgMonthEndBalance },
	FieldSavingsGrowthRate:          func(r *domain.BehavioralRecord) float64 { return r.SavingsGrowthRate },
	FieldIncomeRegularityScore:      func(r *domain.BehavioralRecord) float64 { return r.IncomeRegularityScore },
	FieldIncomeStabilityMonths:      func(r *domain.BehavioralRecord) float64 { return float64(r.IncomeStabilityMonths) },
	FieldAccountTenureMonths:        func(r *domain.BehavioralRecord) float64 { return float64(r.AccountTenureMonths) },
	FieldAddressStabilityYears:      func(r *domain.BehavioralRecord) float64 { return r.AddressStabilityYears },
	FieldDiscretionaryIncomeRatio:   func(r *domain.BehavioralRecord) float64 { return r.DiscretionaryIncomeRatio },
}

// KnownField reports whether name is a field of domain.BehavioralRecord.
func KnownField(name string) bool {
	_, ok := recordFields[name]
	return ok
}

// FieldValue returns the named field of r.
// Unknown fields and a nil record read as zero.
func FieldValue(r *domain.BehavioralRecord, name string) float64 {
	read, ok := recordFields[name]
	if !ok || r == nil {
		return 0
	}
	return read(r)
}

// RecordValues returns every field of r keyed by field name.
func RecordValues(r *domain.BehavioralRecord) map[string]float64 {
	values := make(map[string]float64, len(recordFields))
	for name := range recordFields {
		values[name] = FieldValue(r, name)
	}
	return values
}
