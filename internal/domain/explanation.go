package domain

// FactorType is the direction a factor pushes the assessment.
type FactorType string

const (
	FactorPositive FactorType = "positive"
	FactorNeutral  FactorType = "neutral"
	FactorNegative FactorType = "negative"
)

// Impact is the weight tier of a factor.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// Factor is one human-readable explanation unit derived from a rule result.
type Factor struct {
	Rank              int        `json:"rank"`
	RuleID            string     `json:"ruleId"`
	RuleName          string     `json:"ruleName"`
	Category          string     `json:"category"`
	Type              FactorType `json:"type"`
	Impact            Impact     `json:"impact"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Value             float64    `json:"value"`
	RequiredThreshold float64    `json:"requiredThreshold"`
	ThresholdMet      bool       `json:"thresholdMet"`
	PointsEarned      int        `json:"pointsEarned"`
	MaxPoints         int        `json:"maxPoints"`
	Status            RuleStatus `json:"status"`
}

// CategorySummary rolls up the rules of one category.
type CategorySummary struct {
	Category    string `json:"category"`
	TotalRules  int    `json:"totalRules"`
	Satisfied   int    `json:"satisfied"`
	Partial     int    `json:"partial"`
	NotMet      int    `json:"notMet"`
	TotalPoints int    `json:"totalPoints"`
	MaxPoints   int    `json:"maxPoints"`
}

// Summary rolls up a full set of rule results.
type Summary struct {
	Categories     []CategorySummary `json:"categories"`
	TotalRules     int               `json:"totalRules"`
	RulesSatisfied int               `json:"rulesSatisfied"`
	RulesPartial   int               `json:"rulesPartial"`
	RulesNotMet    int               `json:"rulesNotMet"`
	TotalPoints    int               `json:"totalPoints"`
	MaxPoints      int               `json:"maxPoints"` // sum of rule payouts
}
