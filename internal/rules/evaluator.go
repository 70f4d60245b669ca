// Package rules holds the claim rule evaluators. Each evaluator is an
// independent check over the normalized claim and its reference
// snapshot; none depends on another's output, which is what allows the
// orchestrator to fan them out in parallel.
package rules

import (
	"context"

	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/policy"
)

// Evaluator is one compliance or fraud check.
// Evaluate must be a pure function of (claim, snapshot): no shared
// mutable state, no writes.
type Evaluator interface {
	// ID is the stable rule identifier carried on hits.
	ID() string

	// Type categorizes the evaluator's hits.
	Type() domain.RuleType

	// Requires lists the reference types the evaluator depends on.
	// When any of them is degraded in the snapshot, the orchestrator
	// skips the evaluator and records the skip - absence of data is
	// insufficient data, not a clean result.
	Requires() []domain.RefType

	Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit
}

// Registry returns the fixed evaluator set in registration order. The
// order is part of the engine's determinism contract: hits are reported
// and scored in this order.
//
// The set is closed at compile time; tenant-configurable screening is
// confined to the single policy evaluator at the end.
func Registry(cfg domain.ScoringConfig, policyEngine *policy.Engine) []Evaluator {
	evaluators := []Evaluator{
		&NcciPtpEvaluator{cfg: cfg},
		&MueEvaluator{cfg: cfg},
		&ProviderExclusionEvaluator{cfg: cfg},
		&EligibilityEvaluator{cfg: cfg},
		&PriorAuthEvaluator{cfg: cfg},
		&BenefitLimitEvaluator{cfg: cfg},
		&DuplicateEvaluator{cfg: cfg},
		&HighDollarEvaluator{cfg: cfg},
		&ModifierEvaluator{cfg: cfg},
	}
	if policyEngine != nil {
		evaluators = append(evaluators, &PolicyEvaluator{cfg: cfg, engine: policyEngine})
	}
	return evaluators
}

// weightFor returns the configured score weight for a severity.
func weightFor(cfg domain.ScoringConfig, sev domain.Severity) float64 {
	return cfg.SeverityWeights[sev]
}
