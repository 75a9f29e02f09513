package pathway

import (
	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/narrative"
)

// effort says how timeframe and difficulty are derived for a rule.
type effort int

const (
	// duration rules need time to pass; the gap is the timeframe.
	duration effort = iota
	// savings rules take a fixed few months of saving.
	savings
	// behavioral rules change with a couple of months of new habits.
	behavioral
)

// guidance is the static improvement advice for one rule.
// Criteria placeholders: {gap}, {target} and {timeframe}.
type guidance struct {
	Action       string
	Criteria     string
	Verification string
	Tips         []string
	Unit         domain.GapUnit
	Effort       effort
	Format       narrative.Format
}

var guidanceTable = map[string]guidance{
	"A1": {
		Action:       "Extend Utility Payment History",
		Criteria:     "Maintain on-time utility payments for {gap} additional consecutive months",
		Verification: "Utility bill payment records will be verified through the Account Aggregator framework",
		Tips: []string{
			"Set up auto-pay for electricity and water bills",
			"Maintain sufficient balance before due dates",
			"Keep digital payment receipts for verification",
		},
		Unit: domain.GapMonths, Effort: duration, Format: narrative.Integer,
	},
	"A2": {
		Action:       "Improve Payment Reliability",
		Criteria:     "Achieve {target} payment consistency over the next {timeframe}",
		Verification: "Payment consistency calculated from utility and subscription payment records",
		Tips: []string{
			"Never miss payment due dates",
			"Set calendar reminders 3 days before due dates",
			"Use automatic payment methods where available",
		},
		Unit: domain.GapPercentage, Effort: behavioral, Format: narrative.Percent,
	},
	"B1": {
		Action:       "Increase Digital Transaction Activity",
		Criteria:     "Maintain {target}+ digital transactions monthly for {timeframe}",
		Verification: "Transaction count verified through bank statement and UPI records",
		Tips: []string{
			"Use UPI for daily purchases instead of cash",
			"Pay bills digitally (mobile, DTH, utilities)",
			"Use digital wallets for regular expenses",
		},
		Unit: domain.GapPercentage, Effort: behavioral, Format: narrative.Integer,
	},
	"B2": {
		Action:       "Establish Transaction Regularity",
		Criteria:     "Achieve {target} transaction regularity over {timeframe}",
		Verification: "Regularity score calculated from transaction timing patterns",
		Tips: []string{
			"Maintain consistent monthly spending patterns",
			"Avoid large irregular transactions",
			"Spread purchases evenly throughout the month",
		},
		Unit: domain.GapPercentage, Effort: behavioral, Format: narrative.Percent,
	},
	"C1": {
		Action:       "Reduce Spending Volatility",
		Criteria:     "Maintain spending volatility below {target} for {timeframe}",
		Verification: "Volatility calculated from monthly spending variance",
		Tips: []string{
			"Create and follow a monthly budget",
			"Avoid impulsive large purchases",
			"Plan major expenses in advance",
		},
		Unit: domain.GapPercentage, Effort: behavioral, Format: narrative.PercentTenths,
	},
	"C2": {
		Action:       "Improve Withdrawal Discipline",
		Criteria:     "Achieve {target} withdrawal discipline score over {timeframe}",
		Verification: "Discipline score calculated from withdrawal frequency and timing patterns",
		Tips: []string{
			"Limit ATM withdrawals to planned amounts",
			"Avoid frequent small withdrawals",
			"Maintain minimum balance consistently",
		},
		Unit: domain.GapPercentage, Effort: behavioral, Format: narrative.Percent,
	},
	"D1": {
		Action:       "Build Savings Balance",
		Criteria:     "Maintain average month-end balance of {target}+ for {timeframe}",
		Verification: "Balance verified from bank statements at month-end",
		Tips: []string{
			"Set up automatic savings transfer on salary day",
			"Reduce discretionary spending by 10-15%",
			"Keep emergency fund separate from spending account",
		},
		Unit: domain.GapCurrency, Effort: savings, Format: narrative.Currency,
	},
	"D2": {
		Action:       "Establish Savings Growth",
		Criteria:     "Achieve {target}+ monthly savings growth for {timeframe}",
		Verification: "Growth rate calculated from month-over-month balance changes",
		Tips: []string{
			"Increase savings amount by small increments monthly",
			"Deposit bonuses and extra income into savings",
			"Track savings progress weekly",
		},
		Unit: domain.GapPercentage, Effort: savings, Format: narrative.PercentTenths,
	},
	"E1": {
		Action:       "Stabilize Income Pattern",
		Criteria:     "Achieve {target} income regularity over {timeframe}",
		Verification: "Regularity calculated from income deposit timing and amounts",
		Tips: []string{
			"Maintain consistent employment",
			"Document all income sources",
			"Ensure salary credits on regular schedule",
		},
		Unit: domain.GapPercentage, Effort: behavioral, Format: narrative.Percent,
	},
	"E2": {
		Action:       "Extend Income Stability Duration",
		Criteria:     "Maintain stable income for {gap} additional months",
		Verification: "Stability verified through consistent salary credits",
		Tips: []string{
			"Continue current employment",
			"Document income through bank statements",
			"Maintain regular income deposit patterns",
		},
		Unit: domain.GapMonths, Effort: duration, Format: narrative.Integer,
	},
	"F1": {
		Action:       "Build Account History",
		Criteria:     "Maintain active account for {gap} additional months",
		Verification: "Tenure verified from account opening date",
		Tips: []string{
			"Keep account active with regular transactions",
			"Maintain minimum balance requirements",
			"Use account for primary financial activities",
		},
		Unit: domain.GapMonths, Effort: duration, Format: narrative.Integer,
	},
	"F2": {
		Action:       "Establish Address Stability",
		Criteria:     "Maintain current address for {gap} additional months",
		Verification: "Address verified through utility bills and bank records",
		Tips: []string{
			"Update address on all financial accounts",
			"Maintain utility connections at current address",
			"Keep address proof documents current",
		},
		Unit: domain.GapYears, Effort: duration, Format: narrative.Years,
	},
}
