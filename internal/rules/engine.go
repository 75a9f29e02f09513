package rules

import (
	"github.com/opensource-finance/nexis/internal/domain"
)

// Risk level cut-offs on the trust score.
const (
	lowRiskFloor      = 700
	moderateRiskFloor = 550
)

// Engine scores behavioral records against a catalog.
// Every method is a pure function of its arguments and the catalog.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates a scoring engine. A nil catalog selects Default().
func NewEngine(catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = Default()
	}
	return &Engine{catalog: catalog}
}

// Catalog returns the catalog the engine scores against.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Evaluate runs every rule against record and aggregates the outcome.
// A nil record scores as if every field were zero.
func (e *Engine) Evaluate(record *domain.BehavioralRecord) domain.ScoreResult {
	result := domain.ScoreResult{
		MaxPoints: e.catalog.MaxPoints(),
		Results:   make([]domain.RuleResult, 0, e.catalog.Len()),
	}

	for _, def := range e.catalog.rules {
		rr := evaluateRule(def, FieldValue(record, def.Field))
		result.Results = append(result.Results, rr)
		result.TotalPoints += rr.PointsEarned

		switch rr.Status {
		case domain.StatusFullySatisfied:
			result.RulesSatisfied++
		case domain.StatusPartiallySatisfied:
			result.RulesPartial++
		default:
			result.RulesNotMet++
		}
	}

	result.RulesEvaluated = len(result.Results)
	result.TrustScore = e.catalog.TrustScore(result.TotalPoints)
	result.RiskLevel = RiskLevelFor(result.TrustScore)

	return result
}

// evaluateRule classifies one value against one definition.
func evaluateRule(def domain.RuleDefinition, value float64) domain.RuleResult {
	level := classify(def, value)

	return domain.RuleResult{
		RuleID:            def.ID,
		RuleName:          def.Name,
		Category:          def.Category,
		Field:             def.Field,
		Polarity:          def.Polarity,
		Value:             value,
		RequiredThreshold: def.Thresholds.Medium,
		ThresholdMet:      meets(def.Polarity, value, def.Thresholds.Medium),
		PointsEarned:      def.PointsFor(level),
		MaxPoints:         def.MaxPoints(),
		Status:            statusFor(level),
		Level:             level,
	}
}

// classify finds the best level whose threshold the value reaches.
func classify(def domain.RuleDefinition, value float64) domain.Level {
	t := def.Thresholds
	switch {
	case meets(def.Polarity, value, t.High):
		return domain.LevelHigh
	case meets(def.Polarity, value, t.Medium):
		return domain.LevelMedium
	case meets(def.Polarity, value, t.Low):
		return domain.LevelLow
	default:
		return domain.LevelMinimum
	}
}

// meets reports whether value is at or beyond threshold in the favorable direction.
func meets(p domain.Polarity, value, threshold float64) bool {
	if p == domain.LowerIsBetter {
		return value <= threshold
	}
	return value >= threshold
}

func statusFor(level domain.Level) domain.RuleStatus {
	switch level {
	case domain.LevelHigh:
		return domain.StatusFullySatisfied
	case domain.LevelMedium, domain.LevelLow:
		return domain.StatusPartiallySatisfied
	default:
		return domain.StatusNotSatisfied
	}
}

// RiskLevelFor buckets a trust score.
func RiskLevelFor(score int) domain.RiskLevel {
	switch {
	case score >= lowRiskFloor:
		return domain.RiskLow
	case score >= moderateRiskFloor:
		return domain.RiskModerate
	default:
		return domain.RiskHigh
	}
}

// AssessmentStrength grades how much data backs a record. Completeness
// is the share of rule fields holding a value above zero. Pass the same
// record that was scored.
func (e *Engine) AssessmentStrength(record *domain.BehavioralRecord, documentationMonths int) domain.AssessmentStrength {
	present := 0
	for _, def := range e.catalog.rules {
		if FieldValue(record, def.Field) > 0 {
			present++
		}
	}
	completeness := float64(present) / float64(e.catalog.Len())

	switch {
	case documentationMonths >= 18 && completeness >= 0.95:
		return domain.StrengthStrong
	case documentationMonths >= 12 && completeness >= 0.80:
		return domain.StrengthModerate
	default:
		return domain.StrengthWeak
	}
}

// RuleMatchLevel buckets the share of fully satisfied rules.
func RuleMatchLevel(satisfied, total int) domain.MatchLevel {
	rate := 0.0
	if total > 0 {
		rate = float64(satisfied) / float64(total)
	}

	switch {
	case rate >= 0.80:
		return domain.MatchHigh
	case rate >= 0.50:
		return domain.MatchMedium
	default:
		return domain.MatchLow
	}
}
