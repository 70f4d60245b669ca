// Package policy provides the CEL-based screening policy engine.
// Policies are tenant-configured expressions evaluated over a normalized
// claim; they supplement the fixed builtin evaluators.
package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-health/kestrel/internal/domain"
)

// Engine compiles and evaluates screening policies.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledPolicy
	order    []string
}

// CompiledPolicy holds a pre-compiled CEL program.
type CompiledPolicy struct {
	Config  *domain.PolicyConfig
	Program cel.Program
}

// NewEngine creates a policy engine with the claim variable environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("claim_id", cel.StringType),
		cel.Variable("claim_type", cel.StringType),
		cel.Variable("member_id", cel.StringType),
		cel.Variable("billing_npi", cel.StringType),
		cel.Variable("total_amount", cel.DoubleType),
		cel.Variable("line_count", cel.IntType),
		cel.Variable("max_line_amount", cel.DoubleType),
		cel.Variable("total_units", cel.DoubleType),
		cel.Variable("procedure_codes", cel.ListType(cel.StringType)),
		cel.Variable("diagnosis_codes", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*CompiledPolicy),
	}, nil
}

// Validate compiles a policy without loading it.
func (e *Engine) Validate(cfg *domain.PolicyConfig) error {
	if cfg == nil {
		return fmt.Errorf("policy config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(cfg)
	return err
}

// Load compiles and loads a policy into the engine.
func (e *Engine) Load(cfg *domain.PolicyConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(cfg)
	if err != nil {
		return err
	}

	if _, exists := e.compiled[cfg.ID]; !exists {
		e.order = append(e.order, cfg.ID)
	}
	e.compiled[cfg.ID] = compiled
	return nil
}

// LoadAll loads every enabled policy in the given slice.
func (e *Engine) LoadAll(configs []*domain.PolicyConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.Load(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reload replaces all loaded policies. Enables hot-reloading from the
// store without a restart.
func (e *Engine) Reload(configs []*domain.PolicyConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newPolicies := make(map[string]*CompiledPolicy)
	newOrder := make([]string, 0, len(configs))

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compile(cfg)
		if err != nil {
			return err
		}
		newPolicies[cfg.ID] = compiled
		newOrder = append(newOrder, cfg.ID)
	}

	e.compiled = newPolicies
	e.order = newOrder
	return nil
}

// Loaded returns the currently loaded policy configurations in load order.
func (e *Engine) Loaded() []*domain.PolicyConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.PolicyConfig, 0, len(e.order))
	for _, id := range e.order {
		if p, ok := e.compiled[id]; ok {
			out = append(out, p.Config)
		}
	}
	return out
}

// Count returns the number of loaded policies.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Close clears the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledPolicy)
	e.order = nil
	return nil
}

// EvaluateAll evaluates every loaded policy against the claim and
// returns rule hits for bands that matched with a severity. Policy hits
// are capped at high severity so they can never force a hold.
func (e *Engine) EvaluateAll(claim *domain.Claim) []domain.RuleHit {
	e.mu.RLock()
	policies := make([]*CompiledPolicy, 0, len(e.order))
	for _, id := range e.order {
		if p, ok := e.compiled[id]; ok {
			policies = append(policies, p)
		}
	}
	e.mu.RUnlock()

	if len(policies) == 0 {
		return nil
	}

	activation := buildActivation(claim)

	var hits []domain.RuleHit
	for _, p := range policies {
		if hit, ok := e.evaluate(p, claim, activation); ok {
			hits = append(hits, hit)
		}
	}
	return hits
}

func (e *Engine) evaluate(p *CompiledPolicy, claim *domain.Claim, activation map[string]any) (domain.RuleHit, bool) {
	out, _, err := p.Program.Eval(activation)
	if err != nil {
		// A policy that cannot evaluate contributes nothing.
		return domain.RuleHit{}, false
	}

	score := toScore(out)
	severity, reason := matchBand(score, p.Config.Bands)
	if severity == "" {
		return domain.RuleHit{}, false
	}
	if severity == domain.SeverityCritical {
		severity = domain.SeverityHigh
	}

	flag := p.Config.Flag
	if flag == "" {
		flag = "policy:" + p.Config.ID
	}

	return domain.RuleHit{
		RuleID:      p.Config.ID,
		ClaimID:     claim.ClaimID,
		Type:        domain.RuleTypeFinancial,
		Severity:    severity,
		Weight:      p.Config.Weight,
		Description: reason,
		Flag:        flag,
	}, true
}

// buildActivation maps claim fields to CEL variables.
func buildActivation(claim *domain.Claim) map[string]any {
	var maxLine, totalUnits float64
	for _, l := range claim.Lines {
		if l.Amount > maxLine {
			maxLine = l.Amount
		}
		totalUnits += l.Quantity
	}

	return map[string]any{
		"claim_id":        claim.ClaimID,
		"claim_type":      claim.ClaimType,
		"member_id":       claim.MemberID,
		"billing_npi":     claim.BillingNPI,
		"total_amount":    claim.TotalAmount(),
		"line_count":      int64(len(claim.Lines)),
		"max_line_amount": maxLine,
		"total_units":     totalUnits,
		"procedure_codes": claim.ProcedureCodes(),
		"diagnosis_codes": claim.DiagnosisCodes,
	}
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
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

// matchBand finds the severity for a score. Bands are evaluated in
// order; lower inclusive, upper exclusive, nil bounds open.
func matchBand(score float64, bands []domain.PolicyBand) (domain.Severity, string) {
	for _, band := range bands {
		if band.LowerLimit != nil && score < *band.LowerLimit {
			continue
		}
		if band.UpperLimit != nil && score >= *band.UpperLimit {
			continue
		}
		return band.Severity, band.Reason
	}
	return "", ""
}

func (e *Engine) compile(cfg *domain.PolicyConfig) (*CompiledPolicy, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("policy %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", cfg.ID, err)
	}

	return &CompiledPolicy{Config: cfg, Program: program}, nil
}
