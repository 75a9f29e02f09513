package explain

import "github.com/opensource-finance/nexis/internal/narrative"

// template holds the narrative for one rule. Positive text is used when the
// rule is fully satisfied, negative text otherwise.
type template struct {
	Format   narrative.Format
	Positive string
	Negative string
	Insight  string
}

const (
	satisfiedLine = "Status: ✓ Rule Satisfied"
	notMetLine    = "Status: ⚠ Threshold Not Met"
)

var templates = map[string]template{
	"A1": {
		Format: narrative.Integer,
		Positive: "Rule A1: Utility Payment Consistency\n\n" +
			"Your Value: {value} consecutive months\n" +
			"Required Threshold: {threshold}+ months\n" +
			satisfiedLine + "\n\n" +
			"You have maintained on-time utility bill payments for {value} consecutive months, " +
			"meeting the required {threshold}-month threshold. This demonstrates consistent payment discipline.",
		Negative: "Rule A1: Utility Payment Consistency\n\n" +
			"Your Value: {value} consecutive months\n" +
			"Required Threshold: {threshold}+ months\n" +
			notMetLine + "\n\n" +
			"Your documented utility payment history is {value} months. Maintaining {threshold}+ " +
			"consecutive months of on-time payments will satisfy this rule.",
		Insight: "Documented financial behavior in Indian financial institutions associates this indicator " +
			"with consistent repayment discipline.",
	},
	"A2": {
		Format: narrative.Percent,
		Positive: "Rule A2: Payment Reliability Score\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			satisfiedLine + "\n\n" +
			"Your payment reliability score of {value} exceeds the required {threshold} threshold, " +
			"demonstrating excellent payment consistency.",
		Negative: "Rule A2: Payment Reliability Score\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			notMetLine + "\n\n" +
			"Your payment reliability score is {value}. Achieving {threshold}+ consistency will satisfy this rule.",
		Insight: "Financial institutions in India have documented that individuals maintaining this behavioral " +
			"pattern demonstrate reliable repayment capacity.",
	},
	"B1": {
		Format: narrative.Integer,
		Positive: "Rule B1: Digital Transaction Activity\n\n" +
			"Your Value: {value} transactions/month\n" +
			"Required Threshold: {threshold}+ transactions/month\n" +
			satisfiedLine + "\n\n" +
			"You maintain {value} regular digital transactions monthly, showing active financial engagement " +
			"that exceeds the {threshold} transaction threshold.",
		Negative: "Rule B1: Digital Transaction Activity\n\n" +
			"Your Value: {value} transactions/month\n" +
			"Required Threshold: {threshold}+ transactions/month\n" +
			notMetLine + "\n\n" +
			"Your monthly transaction count is {value}. Increasing to {threshold}+ regular transactions " +
			"will satisfy this rule.",
		Insight: "Industry research identifies this behavioral indicator as a reliable measure " +
			"of financial engagement and activity.",
	},
	"B2": {
		Format: narrative.Percent,
		Positive: "Rule B2: Transaction Regularity\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			satisfiedLine + "\n\n" +
			"Your transaction regularity score of {value} demonstrates consistent financial activity patterns.",
		Negative: "Rule B2: Transaction Regularity\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			notMetLine + "\n\n" +
			"Your transaction regularity is {value}. Achieving {threshold}+ consistency will satisfy this rule.",
		Insight: "Regular transaction patterns indicate stable financial behavior and predictable cash flow management.",
	},
	"C1": {
		Format: narrative.PercentTenths,
		Positive: "Rule C1: Spending Stability\n\n" +
			"Your Value: {value} volatility\n" +
			"Required Threshold: Below {threshold}\n" +
			satisfiedLine + "\n\n" +
			"Your spending volatility of {value} is within the {threshold} threshold, " +
			"indicating excellent financial discipline and predictable spending patterns.",
		Negative: "Rule C1: Spending Stability\n\n" +
			"Your Value: {value} volatility\n" +
			"Required Threshold: Below {threshold}\n" +
			notMetLine + "\n\n" +
			"Your spending volatility is {value}. Reducing volatility below {threshold} will satisfy this rule.",
		Insight: "Lower spending volatility indicates better financial planning and budget discipline.",
	},
	"C2": {
		Format: narrative.Percent,
		Positive: "Rule C2: Withdrawal Discipline\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			satisfiedLine + "\n\n" +
			"Your withdrawal discipline score of {value} demonstrates controlled cash management.",
		Negative: "Rule C2: Withdrawal Discipline\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			notMetLine + "\n\n" +
			"Your withdrawal discipline is {value}. Achieving {threshold}+ will satisfy this rule.",
		Insight: "Disciplined withdrawal patterns indicate better cash flow management and financial planning.",
	},
	"D1": {
		Format: narrative.Currency,
		Positive: "Rule D1: Savings Balance Maintenance\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			satisfiedLine + "\n\n" +
			"You maintain an average month-end balance of {value}, exceeding the {threshold} threshold " +
			"and showing good savings habits.",
		Negative: "Rule D1: Savings Balance Maintenance\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			notMetLine + "\n\n" +
			"Your average month-end balance is {value}. Building to {threshold}+ will satisfy this rule.",
		Insight: "Maintaining consistent savings balances demonstrates financial stability and emergency preparedness.",
	},
	"D2": {
		Format: narrative.PercentTenths,
		Positive: "Rule D2: Savings Growth Pattern\n\n" +
			"Your Value: {value} monthly growth\n" +
			"Required Threshold: {threshold}+ monthly growth\n" +
			satisfiedLine + "\n\n" +
			"Your savings are growing at {value} per month, demonstrating financial progress.",
		Negative: "Rule D2: Savings Growth Pattern\n\n" +
			"Your Value: {value} monthly growth\n" +
			"Required Threshold: {threshold}+ monthly growth\n" +
			notMetLine + "\n\n" +
			"Your savings growth rate is {value}. Achieving {threshold}+ monthly growth will satisfy this rule.",
		Insight: "Positive savings growth indicates improving financial health and future planning capability.",
	},
	"E1": {
		Format: narrative.Percent,
		Positive: "Rule E1: Income Consistency\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			satisfiedLine + "\n\n" +
			"Your income regularity score of {value} demonstrates stable employment and consistent earnings.",
		Negative: "Rule E1: Income Consistency\n\n" +
			"Your Value: {value}\n" +
			"Required Threshold: {threshold}+\n" +
			notMetLine + "\n\n" +
			"Your income regularity is {value}. Achieving {threshold}+ consistency will satisfy this rule.",
		Insight: "Regular income patterns indicate employment stability and predictable repayment capacity.",
	},
	"E2": {
		Format: narrative.Integer,
		Positive: "Rule E2: Income Stability Duration\n\n" +
			"Your Value: {value} months\n" +
			"Required Threshold: {threshold}+ months\n" +
			satisfiedLine + "\n\n" +
			"You have maintained stable income for {value} months, exceeding the {threshold}-month threshold.",
		Negative: "Rule E2: Income Stability Duration\n\n" +
			"Your Value: {value} months\n" +
			"Required Threshold: {threshold}+ months\n" +
			notMetLine + "\n\n" +
			"Your income stability period is {value} months. Maintaining {threshold}+ months will satisfy this rule.",
		Insight: "Longer income stability periods demonstrate employment security and reliable earning capacity.",
	},
	"F1": {
		Format: narrative.Integer,
		Positive: "Rule F1: Account Tenure\n\n" +
			"Your Value: {value} months\n" +
			"Required Threshold: {threshold}+ months\n" +
			satisfiedLine + "\n\n" +
			"Your account has been active for {value} months, showing long-term financial engagement.",
		Negative: "Rule F1: Account Tenure\n\n" +
			"Your Value: {value} months\n" +
			"Required Threshold: {threshold}+ months\n" +
			notMetLine + "\n\n" +
			"Your account tenure is {value} months. Reaching {threshold}+ months will satisfy this rule.",
		Insight: "Longer account tenure demonstrates sustained financial engagement and relationship stability.",
	},
	"F2": {
		Format: narrative.Years,
		Positive: "Rule F2: Address Stability\n\n" +
			"Your Value: {value} years\n" +
			"Required Threshold: {threshold}+ years\n" +
			satisfiedLine + "\n\n" +
			"You have resided at your current address for {value} years, demonstrating residential stability.",
		Negative: "Rule F2: Address Stability\n\n" +
			"Your Value: {value} years\n" +
			"Required Threshold: {threshold}+ years\n" +
			notMetLine + "\n\n" +
			"Your address stability is {value} years. Maintaining {threshold}+ years will satisfy this rule.",
		Insight: "Address stability indicates residential permanence and reduces relocation-related risks.",
	},
}

// ValueFormat returns the display format for a rule's values.
func ValueFormat(ruleID string) (narrative.Format, bool) {
	t, ok := templates[ruleID]
	return t.Format, ok
}
