package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opensource-finance/nexis/internal/domain"
)

// Loader fetches the stored policies of a tenant.
type Loader func(ctx context.Context, tenantID string) ([]*domain.LenderPolicy, error)

// Registry keeps one Engine per tenant. A tenant's policies are loaded on
// first use and again on Reload.
type Registry struct {
	mu         sync.Mutex
	engines    map[string]*Engine
	load       Loader
	maxWorkers int
	validator  *Engine
}

// NewRegistry creates a registry. A nil loader starts every tenant empty.
func NewRegistry(load Loader, maxWorkers int) (*Registry, error) {
	validator, err := NewEngine(1)
	if err != nil {
		return nil, err
	}
	return &Registry{
		engines:    make(map[string]*Engine),
		load:       load,
		maxWorkers: maxWorkers,
		validator:  validator,
	}, nil
}

// Validate compiles a policy without loading it anywhere.
func (r *Registry) Validate(p *domain.LenderPolicy) error {
	return r.validator.ValidatePolicy(p)
}

// Engine returns the engine of a tenant, loading its policies if needed.
func (r *Registry) Engine(ctx context.Context, tenantID string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[tenantID]; ok {
		return e, nil
	}

	e, err := NewEngine(r.maxWorkers)
	if err != nil {
		return nil, err
	}
	if r.load != nil {
		policies, err := r.load(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load policies for tenant %s: %w", tenantID, err)
		}
		if err := e.ReloadPolicies(policies); err != nil {
			return nil, err
		}
	}

	r.engines[tenantID] = e
	return e, nil
}

// Evaluate runs the tenant's policies against an assessment.
func (r *Registry) Evaluate(ctx context.Context, tenantID string, a *domain.Assessment) ([]domain.PolicyResult, error) {
	e, err := r.Engine(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return e.EvaluateAll(ctx, a), nil
}

// Reload fetches the tenant's policies again and swaps them in. On error
// the loaded set is kept. It returns the number of loaded policies.
func (r *Registry) Reload(ctx context.Context, tenantID string) (int, error) {
	e, err := r.Engine(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if r.load == nil {
		return e.Count(), nil
	}

	policies, err := r.load(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to load policies for tenant %s: %w", tenantID, err)
	}
	if err := e.ReloadPolicies(policies); err != nil {
		return 0, err
	}
	return e.Count(), nil
}

// Tenants returns the tenants with a loaded engine.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close unloads every tenant.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.engines {
		e.Close()
	}
	r.engines = make(map[string]*Engine)
	return nil
}
