// Package policy evaluates tenant-defined CEL lender policies against
// completed assessments.
package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/nexis/internal/domain"
	"github.com/opensource-finance/nexis/internal/rules"
)

// Engine is the CEL-based lender policy engine.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]*CompiledPolicy
	maxWorkers int
}

// CompiledPolicy holds a pre-compiled CEL program.
type CompiledPolicy struct {
	Policy  *domain.LenderPolicy
	Program cel.Program
}

// NewEngine creates a new policy engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Assessment variables visible to policy expressions
	env, err := cel.NewEnv(
		cel.Variable("trust_score", cel.IntType),
		cel.Variable("potential_score", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("total_points", cel.IntType),
		cel.Variable("max_points", cel.IntType),
		cel.Variable("rules_satisfied", cel.IntType),
		cel.Variable("rules_partial", cel.IntType),
		cel.Variable("rules_not_met", cel.IntType),
		cel.Variable("assessment_strength", cel.StringType),
		cel.Variable("rule_match_level", cel.StringType),
		cel.Variable("record", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("rule_points", cel.MapType(cel.StringType, cel.IntType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		compiled:   make(map[string]*CompiledPolicy),
		maxWorkers: maxWorkers,
	}, nil
}

// ValidatePolicy compiles and validates a policy without mutating loaded policies.
func (e *Engine) ValidatePolicy(p *domain.LenderPolicy) error {
	if p == nil {
		return fmt.Errorf("policy is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(p)
	return err
}

// LoadPolicy compiles and loads a policy into the engine.
func (e *Engine) LoadPolicy(p *domain.LenderPolicy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(p)
	if err != nil {
		return err
	}

	e.compiled[p.ID] = compiled
	return nil
}

// ReloadPolicies replaces every loaded policy with the enabled ones given.
// On a compile error the previous set stays loaded.
func (e *Engine) ReloadPolicies(policies []*domain.LenderPolicy) error {
	next := make(map[string]*CompiledPolicy)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		compiled, err := e.compile(p)
		if err != nil {
			return err
		}
		next[p.ID] = compiled
	}

	e.compiled = next
	return nil
}

// Activation builds the CEL variables for an assessment.
func Activation(a *domain.Assessment) map[string]any {
	points := make(map[string]int64, len(a.RuleResults))
	for _, r := range a.RuleResults {
		points[r.RuleID] = int64(r.PointsEarned)
	}

	return map[string]any{
		"trust_score":         int64(a.TrustScore),
		"potential_score":     int64(a.PotentialScore),
		"risk_level":          string(a.RiskLevel),
		"total_points":        int64(a.TotalPoints),
		"max_points":          int64(a.MaxPoints),
		"rules_satisfied":     int64(a.RulesSatisfied),
		"rules_partial":       int64(a.RulesPartial),
		"rules_not_met":       int64(a.RulesNotMet),
		"assessment_strength": string(a.AssessmentStrength),
		"rule_match_level":    string(a.RuleMatchLevel),
		"record":              rules.RecordValues(&a.Record),
		"rule_points":         points,
	}
}

// EvaluateAll evaluates every loaded policy in parallel. Results are
// ordered by policy id.
func (e *Engine) EvaluateAll(ctx context.Context, a *domain.Assessment) []domain.PolicyResult {
	e.mu.RLock()
	policies := make([]*CompiledPolicy, 0, len(e.compiled))
	for _, p := range e.compiled {
		policies = append(policies, p)
	}
	e.mu.RUnlock()

	if len(policies) == 0 {
		return nil
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Policy.ID < policies[j].Policy.ID
	})

	activation := Activation(a)

	results := make([]domain.PolicyResult, len(policies))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, p := range policies {
		wg.Add(1)
		go func(idx int, cp *CompiledPolicy) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluate(ctx, cp, activation)
		}(i, p)
	}

	wg.Wait()
	return results
}

func (e *Engine) evaluate(ctx context.Context, cp *CompiledPolicy, activation map[string]any) domain.PolicyResult {
	start := time.Now()

	result := domain.PolicyResult{
		PolicyID: cp.Policy.ID,
		Name:     cp.Policy.Name,
	}

	out, _, err := cp.Program.ContextEval(ctx, activation)
	if err != nil {
		result.Outcome = domain.PolicyOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	result.Value = toValue(out)
	result.Outcome, result.Reason = matchBand(result.Value, cp.Policy.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toValue converts a CEL value to a number.
func toValue(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the first band containing value.
// Lower limits are inclusive, upper limits exclusive; a nil upper limit is unbounded.
func matchBand(value float64, bands []domain.PolicyBand) (string, string) {
	for _, band := range bands {
		if band.LowerLimit != nil && value < *band.LowerLimit {
			continue
		}
		if band.UpperLimit != nil && value >= *band.UpperLimit {
			continue
		}
		return band.Outcome, band.Reason
	}

	return domain.PolicyOutcomeReview, "no matching band"
}

// Count returns the number of loaded policies.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Loaded returns the currently loaded policies ordered by id.
func (e *Engine) Loaded() []*domain.LenderPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.LenderPolicy, 0, len(e.compiled))
	for _, cp := range e.compiled {
		out = append(out, cp.Policy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close unloads every policy.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledPolicy)
	return nil
}

func (e *Engine) compile(p *domain.LenderPolicy) (*CompiledPolicy, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("policy id is required")
	}

	ast, issues := e.env.Compile(p.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", p.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("policy %s: expression must return bool, int, or double, got %s", p.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", p.ID, err)
	}

	return &CompiledPolicy{
		Policy:  p,
		Program: program,
	}, nil
}
