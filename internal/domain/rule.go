package domain

// Polarity says which direction of a field value is favorable.
type Polarity string

const (
	HigherIsBetter Polarity = "higher"
	LowerIsBetter  Polarity = "lower"
)

// Level is the tier a field value reached against a rule's thresholds.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelMinimum Level = "minimum"
)

// RuleStatus summarises a rule evaluation for display.
type RuleStatus string

const (
	StatusFullySatisfied     RuleStatus = "Fully Satisfied"
	StatusPartiallySatisfied RuleStatus = "Partially Satisfied"
	StatusNotSatisfied       RuleStatus = "Not Satisfied"
)

// Thresholds are the three cut points of a rule, ordered from best to worst.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// Points are the payouts for each level. High is the rule's maximum.
type Points struct {
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
	Minimum int `json:"minimum"`
}

// RuleDefinition is one entry of the rule catalog.
type RuleDefinition struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Field      string     `json:"field"`
	Polarity   Polarity   `json:"polarity"`
	Thresholds Thresholds `json:"thresholds"`
	Points     Points     `json:"points"`
}

// MaxPoints returns the most a rule can award.
func (d RuleDefinition) MaxPoints() int {
	return d.Points.High
}

// PointsFor returns the payout for a level.
func (d RuleDefinition) PointsFor(level Level) int {
	switch level {
	case LevelHigh:
		return d.Points.High
	case LevelMedium:
		return d.Points.Medium
	case LevelLow:
		return d.Points.Low
	default:
		return d.Points.Minimum
	}
}

// RuleResult is the outcome of one rule for one record.
type RuleResult struct {
	RuleID            string     `json:"ruleId"`
	RuleName          string     `json:"ruleName"`
	Category          string     `json:"category"`
	Field             string     `json:"field"`
	Polarity          Polarity   `json:"polarity"`
	Value             float64    `json:"value"`
	RequiredThreshold float64    `json:"requiredThreshold"`
	ThresholdMet      bool       `json:"thresholdMet"`
	PointsEarned      int        `json:"pointsEarned"`
	MaxPoints         int        `json:"maxPoints"`
	Status            RuleStatus `json:"status"`
	Level             Level      `json:"level"`
}

// Unrealized returns the points this rule still leaves on the table.
func (r RuleResult) Unrealized() int {
	return r.MaxPoints - r.PointsEarned
}
