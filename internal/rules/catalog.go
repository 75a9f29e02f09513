// Package rules holds the behavioral rule catalog and the deterministic
// scoring engine built on it.
package rules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opensource-finance/nexis/internal/domain"
)

// ErrInvalidCatalog is returned when rule definitions break a catalog invariant.
var ErrInvalidCatalog = errors.New("invalid rule catalog")

// Rule categories in display order.
const (
	CategoryPaymentDiscipline   = "Payment Discipline"
	CategoryFinancialEngagement = "Financial Engagement"
	CategoryFinancialDiscipline = "Financial Discipline"
	CategorySavingsBehavior     = "Savings Behavior"
	CategoryIncomeStability     = "Income Stability"
	CategoryHistoricalStability = "Historical Stability"
)

// Settings are the scoring constants that travel with a catalog.
type Settings struct {
	Version string `json:"version"`

	// MaxPoints is the denominator of the score mapping. Zero selects the
	// sum of the rules' high payouts.
	MaxPoints int `json:"maxPoints"`

	ScoreMin           int `json:"scoreMin"`
	ScoreMax           int `json:"scoreMax"`
	TopFactors         int `json:"topFactors"`
	MaxRecommendations int `json:"maxRecommendations"`
}

// DefaultSettings returns the production scoring constants.
func DefaultSettings() Settings {
	return Settings{
		Version:            "2024.1",
		MaxPoints:          360,
		ScoreMin:           420,
		ScoreMax:           860,
		TopFactors:         8,
		MaxRecommendations: 3,
	}
}

// Catalog is an immutable, validated set of rule definitions.
// It is safe for concurrent use without synchronization.
type Catalog struct {
	rules      []domain.RuleDefinition
	index      map[string]int
	categories []string
	maxPoints  int
	settings   Settings
}

// NewCatalog validates defs and builds a catalog from them.
func NewCatalog(defs []domain.RuleDefinition, settings Settings) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no rules defined", ErrInvalidCatalog)
	}
	if settings.ScoreMin >= settings.ScoreMax {
		return nil, fmt.Errorf("%w: score range [%d, %d] is empty", ErrInvalidCatalog, settings.ScoreMin, settings.ScoreMax)
	}
	if settings.MaxPoints < 0 {
		return nil, fmt.Errorf("%w: max points must not be negative", ErrInvalidCatalog)
	}
	if settings.TopFactors <= 0 || settings.MaxRecommendations <= 0 {
		return nil, fmt.Errorf("%w: top factors and recommendation cap must be positive", ErrInvalidCatalog)
	}

	c := &Catalog{
		rules:    make([]domain.RuleDefinition, len(defs)),
		index:    make(map[string]int, len(defs)),
		settings: settings,
	}
	copy(c.rules, defs)

	highTotal := 0
	seenCategory := make(map[string]bool)
	for i, def := range c.rules {
		if err := validateRule(def); err != nil {
			return nil, err
		}
		if _, dup := c.index[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %s", ErrInvalidCatalog, def.ID)
		}
		c.index[def.ID] = i
		highTotal += def.MaxPoints()

		if !seenCategory[def.Category] {
			seenCategory[def.Category] = true
			c.categories = append(c.categories, def.Category)
		}
	}

	c.maxPoints = settings.MaxPoints
	if c.maxPoints == 0 {
		c.maxPoints = highTotal
		c.settings.MaxPoints = highTotal
	}
	if c.maxPoints < highTotal {
		return nil, fmt.Errorf("%w: max points %d below the %d points the rules can pay",
			ErrInvalidCatalog, c.maxPoints, highTotal)
	}

	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid definitions.
// Use it for catalogs built at process start.
func MustCatalog(defs []domain.RuleDefinition, settings Settings) *Catalog {
	c, err := NewCatalog(defs, settings)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	return MustCatalog(DefaultRules(), DefaultSettings())
})

// Default returns the shared production catalog.
func Default() *Catalog {
	return defaultCatalog()
}

func validateRule(def domain.RuleDefinition) error {
	if def.ID == "" || def.Name == "" || def.Category == "" {
		return fmt.Errorf("%w: rule %q needs an id, name and category", ErrInvalidCatalog, def.ID)
	}
	if !KnownField(def.Field) {
		return fmt.Errorf("%w: rule %s references unknown field %q", ErrInvalidCatalog, def.ID, def.Field)
	}

	p := def.Points
	if !(p.High > p.Medium && p.Medium > p.Low && p.Low > p.Minimum && p.Minimum >= 0) {
		return fmt.Errorf("%w: rule %s points must be strictly descending and non-negative, got %d/%d/%d/%d",
			ErrInvalidCatalog, def.ID, p.High, p.Medium, p.Low, p.Minimum)
	}

	t := def.Thresholds
	switch def.Polarity {
	case domain.HigherIsBetter:
		if !(t.High > t.Medium && t.Medium > t.Low) {
			return fmt.Errorf("%w: rule %s thresholds must descend for a higher-is-better rule", ErrInvalidCatalog, def.ID)
		}
	case domain.LowerIsBetter:
		if !(t.High < t.Medium && t.Medium < t.Low) {
			return fmt.Errorf("%w: rule %s thresholds must ascend for a lower-is-better rule", ErrInvalidCatalog, def.ID)
		}
	default:
		return fmt.Errorf("%w: rule %s has unknown polarity %q", ErrInvalidCatalog, def.ID, def.Polarity)
	}

	return nil
}

// Rules returns the definitions in catalog order.
func (c *Catalog) Rules() []domain.RuleDefinition {
	out := make([]domain.RuleDefinition, len(c.rules))
	copy(out, c.rules)
	return out
}

// Rule looks up a definition by id.
func (c *Catalog) Rule(id string) (domain.RuleDefinition, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.RuleDefinition{}, false
	}
	return c.rules[i], true
}

// Position returns the catalog position of a rule id, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Categories returns category names in first-seen catalog order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// MaxPoints is the score mapping denominator. The default catalog keeps
// 360 although its rules pay at most 350, so a perfect record scores 847.
func (c *Catalog) MaxPoints() int { return c.maxPoints }

// Settings returns the scoring constants.
func (c *Catalog) Settings() Settings { return c.settings }

// ScoreSpan is the width of the trust score band.
func (c *Catalog) ScoreSpan() int { return c.settings.ScoreMax - c.settings.ScoreMin }

// TrustScore maps earned points onto the score band, flooring and clamping.
func (c *Catalog) TrustScore(totalPoints int) int {
	score := c.settings.ScoreMin + totalPoints*c.ScoreSpan()/c.maxPoints
	return clamp(score, c.settings.ScoreMin, c.settings.ScoreMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DefaultRules returns the twelve production rule definitions.
func DefaultRules() []domain.RuleDefinition {
	return []domain.RuleDefinition{
		{
			ID: "A1", Name: "Utility Payment Consistency", Category: CategoryPaymentDiscipline,
			Field: FieldUtilityPaymentMonths, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 18, Medium: 12, Low: 6},
			Points:     domain.Points{High: 40, Medium: 30, Low: 20, Minimum: 10},
		},
		{
			ID: "A2", Name: "Payment Reliability Score", Category: CategoryPaymentDiscipline,
			Field: FieldUtilityPaymentConsistency, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 0.90, Medium: 0.75, Low: 0.60},
			Points:     domain.Points{High: 35, Medium: 25, Low: 15, Minimum: 5},
		},
		{
			ID: "B1", Name: "Digital Transaction Activity", Category: CategoryFinancialEngagement,
			Field: FieldMonthlyTransactionCount, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 40, Medium: 25, Low: 15},
			Points:     domain.Points{High: 30, Medium: 20, Low: 10, Minimum: 5},
		},
		{
			ID: "B2", Name: "Transaction Regularity", Category: CategoryFinancialEngagement,
			Field: FieldTransactionRegularityScore, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 0.80, Medium: 0.65, Low: 0.50},
			Points:     domain.Points{High: 25, Medium: 18, Low: 10, Minimum: 5},
		},
		{
			ID: "C1", Name: "Spending Stability", Category: CategoryFinancialDiscipline,
			Field: FieldSpendingVolatility, Polarity: domain.LowerIsBetter,
			Thresholds: domain.Thresholds{High: 0.15, Medium: 0.30, Low: 0.50},
			Points:     domain.Points{High: 35, Medium: 25, Low: 15, Minimum: 5},
		},
		{
			ID: "C2", Name: "Withdrawal Discipline", Category: CategoryFinancialDiscipline,
			Field: FieldWithdrawalDisciplineScore, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 0.80, Medium: 0.65, Low: 0.50},
			Points:     domain.Points{High: 25, Medium: 18, Low: 10, Minimum: 5},
		},
		{
			ID: "D1", Name: "Savings Balance Maintenance", Category: CategorySavingsBehavior,
			Field: FieldAvgMonthEndBalance, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 5000, Medium: 2500, Low: 1000},
			Points:     domain.Points{High: 30, Medium: 20, Low: 10, Minimum: 5},
		},
		{
			ID: "D2", Name: "Savings Growth Pattern", Category: CategorySavingsBehavior,
			Field: FieldSavingsGrowthRate, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 0.10, Medium: 0.05, Low: 0.00},
			Points:     domain.Points{High: 25, Medium: 18, Low: 10, Minimum: 5},
		},
		{
			ID: "E1", Name: "Income Consistency", Category: CategoryIncomeStability,
			Field: FieldIncomeRegularityScore, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 0.85, Medium: 0.70, Low: 0.55},
			Points:     domain.Points{High: 30, Medium: 20, Low: 10, Minimum: 5},
		},
		{
			ID: "E2", Name: "Income Stability Duration", Category: CategoryIncomeStability,
			Field: FieldIncomeStabilityMonths, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 18, Medium: 12, Low: 6},
			Points:     domain.Points{High: 30, Medium: 20, Low: 10, Minimum: 5},
		},
		{
			ID: "F1", Name: "Account Tenure", Category: CategoryHistoricalStability,
			Field: FieldAccountTenureMonths, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 36, Medium: 24, Low: 12},
			Points:     domain.Points{High: 25, Medium: 18, Low: 10, Minimum: 5},
		},
		{
			ID: "F2", Name: "Address Stability", Category: CategoryHistoricalStability,
			Field: FieldAddressStabilityYears, Polarity: domain.HigherIsBetter,
			Thresholds: domain.Thresholds{High: 3.0, Medium: 2.0, Low: 1.0},
			Points:     domain.Points{High: 20, Medium: 15, Low: 8, Minimum: 3},
		},
	}
}
