package rules

import (
	"context"

	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/policy"
)

// PolicyEvaluator runs the tenant-configured CEL screening policies.
// It is the only evaluator whose rule set is not fixed at compile time,
// and the engine caps its hits below critical so configured policies
// cannot force a hold.
type PolicyEvaluator struct {
	cfg    domain.ScoringConfig
	engine *policy.Engine
}

func (e *PolicyEvaluator) ID() string                 { return "screening-policy" }
func (e *PolicyEvaluator) Type() domain.RuleType      { return domain.RuleTypeFinancial }
func (e *PolicyEvaluator) Requires() []domain.RefType { return nil }

func (e *PolicyEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	hits := e.engine.EvaluateAll(claim)
	for i := range hits {
		if hits[i].Weight == 0 {
			hits[i].Weight = weightFor(e.cfg, hits[i].Severity)
		}
	}
	return hits
}
