// Package explain turns rule results into ranked, human-readable factors
// and per-category rollups.
package explain

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/narrative"
	"github.com/opensource-finance/nexis/internal/rules"
)

// Explainer renders explanations for one catalog.
type Explainer struct {
	catalog *rules.Catalog
}

// New creates an Explainer. A nil catalog selects rules.Default().
func New(catalog *rules.Catalog) *Explainer {
	if catalog == nil {
		catalog = rules.Default()
	}
	return &Explainer{catalog: catalog}
}

// Validate checks that every catalog rule has a template and that no
// template uses speculative wording.
func (x *Explainer) Validate() error {
	for _, def := range x.catalog.Rules() {
		t, ok := templates[def.ID]
		if !ok {
			return fmt.Errorf("rule %s has no explanation template", def.ID)
		}
		for _, text := range []string{t.Positive, t.Negative, t.Insight} {
			if err := narrative.CheckDeterministic(text); err != nil {
				return fmt.Errorf("rule %s explanation: %w", def.ID, err)
			}
		}
	}
	return nil
}

// Explain ranks results by points earned and renders the first topN as
// factors. Ties keep catalog order. A topN of zero or less uses the
// catalog's default. Results without a template are skipped.
func (x *Explainer) Explain(results []domain.RuleResult, topN int) []domain.Factor {
	if topN <= 0 {
		topN = x.catalog.Settings().TopFactors
	}

	ranked := make([]domain.RuleResult, 0, len(results))
	for _, r := range results {
		if _, ok := templates[r.RuleID]; ok {
			ranked = append(ranked, r)
		}
	}
	slices.SortStableFunc(ranked, func(a, b domain.RuleResult) int {
		if c := cmp.Compare(b.PointsEarned, a.PointsEarned); c != 0 {
			return c
		}
		return cmp.Compare(x.position(a.RuleID), x.position(b.RuleID))
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	factors := make([]domain.Factor, 0, len(ranked))
	for i, r := range ranked {
		factors = append(factors, x.factor(i+1, r))
	}
	return factors
}

func (x *Explainer) factor(rank int, r domain.RuleResult) domain.Factor {
	t := templates[r.RuleID]
	factorType, impact := classify(r.Status)

	text := t.Negative
	if factorType == domain.FactorPositive {
		text = t.Positive
	}
	description := narrative.Render(text, map[string]string{
		"value":     narrative.Value(t.Format, r.Value),
		"threshold": narrative.Value(t.Format, r.RequiredThreshold),
	}) + "\n\n" + t.Insight

	return domain.Factor{
		Rank:              rank,
		RuleID:            r.RuleID,
		RuleName:          r.RuleName,
		Category:          r.Category,
		Type:              factorType,
		Impact:            impact,
		Title:             fmt.Sprintf("%s (Rule %s)", r.RuleName, r.RuleID),
		Description:       description,
		Value:             r.Value,
		RequiredThreshold: r.RequiredThreshold,
		ThresholdMet:      r.ThresholdMet,
		PointsEarned:      r.PointsEarned,
		MaxPoints:         r.MaxPoints,
		Status:            r.Status,
	}
}

func classify(status domain.RuleStatus) (domain.FactorType, domain.Impact) {
	switch status {
	case domain.StatusFullySatisfied:
		return domain.FactorPositive, domain.ImpactHigh
	case domain.StatusPartiallySatisfied:
		return domain.FactorNeutral, domain.ImpactMedium
	default:
		return domain.FactorNegative, domain.ImpactLow
	}
}

// position orders unknown rules after every catalog rule.
func (x *Explainer) position(ruleID string) int {
	if p := x.catalog.Position(ruleID); p >= 0 {
		return p
	}
	return x.catalog.Len()
}

// Summarize tallies results per category, in catalog category order.
func (x *Explainer) Summarize(results []domain.RuleResult) domain.Summary {
	order := x.catalog.Categories()
	byCategory := make(map[string]*domain.CategorySummary, len(order))
	for _, name := range order {
		byCategory[name] = &domain.CategorySummary{Category: name}
	}

	var summary domain.Summary
	for _, r := range results {
		cs, ok := byCategory[r.Category]
		if !ok {
			cs = &domain.CategorySummary{Category: r.Category}
			byCategory[r.Category] = cs
			order = append(order, r.Category)
		}

		cs.TotalRules++
		cs.TotalPoints += r.PointsEarned
		cs.MaxPoints += r.MaxPoints
		summary.TotalPoints += r.PointsEarned
		summary.MaxPoints += r.MaxPoints

		switch r.Status {
		case domain.StatusFullySatisfied:
			cs.Satisfied++
			summary.RulesSatisfied++
		case domain.StatusPartiallySatisfied:
			cs.Partial++
			summary.RulesPartial++
		default:
			cs.NotMet++
			summary.RulesNotMet++
		}
	}

	summary.TotalRules = len(results)
	summary.Categories = make([]domain.CategorySummary, 0, len(order))
	for _, name := range order {
		if cs := byCategory[name]; cs.TotalRules > 0 {
			summary.Categories = append(summary.Categories, *cs)
		}
	}
	return summary
}
