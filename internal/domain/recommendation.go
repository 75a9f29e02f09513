package domain

// GapUnit is the unit a recommendation gap is expressed in.
type GapUnit string

const (
	GapMonths     GapUnit = "months"
	GapYears      GapUnit = "years"
	GapCurrency   GapUnit = "currency"
	GapPercentage GapUnit = "percentage points"
)

// Difficulty is a qualitative effort tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Recommendation is one actionable step toward satisfying a rule.
type Recommendation struct {
	RuleID             string     `json:"ruleId"`
	RuleName           string     `json:"ruleName"`
	Category           string     `json:"category"`
	Action             string     `json:"action"`
	Description        string     `json:"description"`
	CurrentValue       float64    `json:"currentValue"`
	TargetThreshold    float64    `json:"targetThreshold"`
	Gap                float64    `json:"gap"`
	GapUnit            GapUnit    `json:"gapUnit"`
	ScoreImpact        int        `json:"scoreImpact"`
	Timeframe          string     `json:"timeframe"`
	Difficulty         Difficulty `json:"difficulty"`
	CompletionCriteria string     `json:"completionCriteria"`
	Verification       string     `json:"verification"`
	Tips               []string   `json:"tips"`
}

// RoadmapStatus orders the steps of a roadmap.
type RoadmapStatus string

const (
	RoadmapOngoing RoadmapStatus = "ongoing"
	RoadmapNext    RoadmapStatus = "next"
	RoadmapFuture  RoadmapStatus = "future"
)

// RoadmapStep is a recommendation laid out on a timeline.
type RoadmapStep struct {
	RuleID      string        `json:"ruleId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ScoreImpact int           `json:"scoreImpact"`
	Timeframe   string        `json:"timeframe"`
	Status      RoadmapStatus `json:"status"`
}
