// Package pathway builds prioritized improvement plans from rule results.
package pathway

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/narrative"
	"github.com/opensource-finance/nexis/internal/rules"
)

// Fixed timeframes for rules whose gap is not a duration.
const (
	savingsTimeframe    = "3-6 months"
	behavioralTimeframe = "2-4 months"
)

var twelve = decimal.NewFromInt(12)

// Generator builds recommendations for one catalog.
type Generator struct {
	catalog *rules.Catalog
}

// New creates a Generator. A nil catalog selects rules.Default().
func New(catalog *rules.Catalog) *Generator {
	if catalog == nil {
		catalog = rules.Default()
	}
	return &Generator{catalog: catalog}
}

// Validate checks that every catalog rule has guidance and that no
// guidance text uses speculative wording.
func (g *Generator) Validate() error {
	for _, def := range g.catalog.Rules() {
		gd, ok := guidanceTable[def.ID]
		if !ok {
			return fmt.Errorf("rule %s has no improvement guidance", def.ID)
		}
		texts := append([]string{gd.Action, gd.Criteria, gd.Verification}, gd.Tips...)
		for _, text := range texts {
			if err := narrative.CheckDeterministic(text); err != nil {
				return fmt.Errorf("rule %s guidance: %w", def.ID, err)
			}
		}
	}
	return nil
}

// Recommend returns up to the catalog's recommendation cap of steps for
// rules that are not fully satisfied, largest unrealized points first.
// Ties keep catalog order. Rules without guidance are skipped.
func (g *Generator) Recommend(results []domain.RuleResult, currentScore int) []domain.Recommendation {
	open := make([]domain.RuleResult, 0, len(results))
	for _, r := range results {
		if r.Status == domain.StatusFullySatisfied {
			continue
		}
		if _, ok := guidanceTable[r.RuleID]; ok {
			open = append(open, r)
		}
	}

	slices.SortStableFunc(open, func(a, b domain.RuleResult) int {
		if c := cmp.Compare(b.Unrealized(), a.Unrealized()); c != 0 {
			return c
		}
		return cmp.Compare(g.position(a.RuleID), g.position(b.RuleID))
	})

	limit := g.catalog.Settings().MaxRecommendations
	if len(open) > limit {
		open = open[:limit]
	}

	recs := make([]domain.Recommendation, 0, len(open))
	for _, r := range open {
		recs = append(recs, recommendation(r, guidanceTable[r.RuleID]))
	}
	return recs
}

func recommendation(r domain.RuleResult, gd guidance) domain.Recommendation {
	gap := gapOf(r)
	impact := r.Unrealized()
	timeframe, difficulty := plan(gd, gap, impact)

	current := narrative.Value(gd.Format, r.Value)
	target := narrative.Value(gd.Format, r.RequiredThreshold)
	criteria := narrative.Render(gd.Criteria, map[string]string{
		"gap":       strconv.FormatInt(months(gap, gd.Unit), 10),
		"target":    target,
		"timeframe": timeframe,
	})

	return domain.Recommendation{
		RuleID:             r.RuleID,
		RuleName:           r.RuleName,
		Category:           r.Category,
		Action:             gd.Action,
		Description:        fmt.Sprintf("Currently at %s, target is %s", current, target),
		CurrentValue:       r.Value,
		TargetThreshold:    r.RequiredThreshold,
		Gap:                gap.InexactFloat64(),
		GapUnit:            gd.Unit,
		ScoreImpact:        impact,
		Timeframe:          timeframe,
		Difficulty:         difficulty,
		CompletionCriteria: criteria,
		Verification:       gd.Verification,
		Tips:               slices.Clone(gd.Tips),
	}
}

// gapOf is the distance from the value to the required threshold. For a
// lower-is-better rule it is signed: zero or less means the value already
// sits at or under the threshold.
func gapOf(r domain.RuleResult) decimal.Decimal {
	current := decimal.NewFromFloat(r.Value)
	target := decimal.NewFromFloat(r.RequiredThreshold)

	if r.Polarity == domain.LowerIsBetter {
		return current.Sub(target)
	}
	return decimal.Max(decimal.Zero, target.Sub(current))
}

// months converts a duration gap to whole months, rounding up.
func months(gap decimal.Decimal, unit domain.GapUnit) int64 {
	if unit == domain.GapYears {
		gap = gap.Mul(twelve)
	}
	if gap.IsNegative() {
		return 0
	}
	return gap.Ceil().IntPart()
}

// plan derives timeframe and difficulty from the rule's effort kind.
func plan(gd guidance, gap decimal.Decimal, impact int) (string, domain.Difficulty) {
	switch gd.Effort {
	case duration:
		var difficulty domain.Difficulty
		switch {
		case gap.LessThanOrEqual(decimal.NewFromInt(6)):
			difficulty = domain.DifficultyEasy
		case gap.LessThanOrEqual(twelve):
			difficulty = domain.DifficultyMedium
		default:
			difficulty = domain.DifficultyHard
		}
		return monthsPhrase(months(gap, gd.Unit)), difficulty
	case savings:
		return savingsTimeframe, domain.DifficultyMedium
	default:
		if impact <= 15 {
			return behavioralTimeframe, domain.DifficultyEasy
		}
		return behavioralTimeframe, domain.DifficultyMedium
	}
}

func monthsPhrase(n int64) string {
	switch n {
	case 0:
		return "Under 1 month"
	case 1:
		return "1 month"
	default:
		return fmt.Sprintf("%d months", n)
	}
}

func (g *Generator) position(ruleID string) int {
	if p := g.catalog.Position(ruleID); p >= 0 {
		return p
	}
	return g.catalog.Len()
}

// PotentialScore is the trust score reached once every recommendation is
// completed: the summed impact converted to score points, rounded, added to
// the current score and capped at the top of the band.
func (g *Generator) PotentialScore(currentScore int, recs []domain.Recommendation) int {
	total := 0
	for _, rec := range recs {
		total += rec.ScoreImpact
	}

	increase := decimal.NewFromInt(int64(total)).
		Mul(decimal.NewFromInt(int64(g.catalog.ScoreSpan()))).
		Div(decimal.NewFromInt(int64(g.catalog.MaxPoints()))).
		Round(0).
		IntPart()

	return min(currentScore+int(increase), g.catalog.Settings().ScoreMax)
}

// Roadmap lays recommendations out as ordered steps: the first is ongoing,
// the second next, the rest future.
func Roadmap(recs []domain.Recommendation) []domain.RoadmapStep {
	steps := make([]domain.RoadmapStep, 0, len(recs))
	for i, rec := range recs {
		status := domain.RoadmapFuture
		switch i {
		case 0:
			status = domain.RoadmapOngoing
		case 1:
			status = domain.RoadmapNext
		}

		steps = append(steps, domain.RoadmapStep{
			RuleID:      rec.RuleID,
			Title:       rec.Action,
			Description: fmt.Sprintf("%s - Will add +%d points", rec.Description, rec.ScoreImpact),
			ScoreImpact: rec.ScoreImpact,
			Timeframe:   rec.Timeframe,
			Status:      status,
		})
	}
	return steps
}
