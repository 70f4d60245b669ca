// Package analysis owns the claim analysis pipeline: normalize,
// resolve references, fan out rule evaluators, aggregate, classify,
// estimate recovery, assemble the result.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/normalize"
	"github.com/opensource-health/kestrel/internal/refdata"
	"github.com/opensource-health/kestrel/internal/rules"
	"github.com/opensource-health/kestrel/internal/score"
)

// Pipeline stages. failed is reachable only from normalizing; every
// later stage degrades instead of failing.
type stage string

const (
	stageNormalizing stage = "normalizing"
	stageResolving   stage = "resolving"
	stageEvaluating  stage = "evaluating"
	stageAggregating stage = "aggregating"
	stageClassifying stage = "classifying"
	stageDone        stage = "done"
	stageFailed      stage = "failed"
)

const engineVersion = "kestrel-1.0"

// Analyzer runs the full analysis pipeline for one claim at a time.
// Analyses share no mutable state, so one Analyzer serves concurrent
// claims safely.
type Analyzer struct {
	resolver   *refdata.Resolver
	evaluators []rules.Evaluator
	cfg        domain.ScoringConfig
}

// NewAnalyzer wires a pipeline from its parts. evaluators must be the
// registry list; its order drives hit ordering and scoring determinism.
func NewAnalyzer(resolver *refdata.Resolver, evaluators []rules.Evaluator, cfg domain.ScoringConfig) *Analyzer {
	return &Analyzer{
		resolver:   resolver,
		evaluators: evaluators,
		cfg:        cfg,
	}
}

// evalOutcome is the per-evaluator fan-out result.
type evalOutcome struct {
	hits     []domain.RuleHit
	skipped  bool
	degraded bool
}

// Analyze runs one claim through the pipeline and returns a best-effort
// result. The only fatal condition is a structurally invalid submission
// (a normalize.ValidationError); resolver and evaluator failures are
// absorbed into the result's metadata.
func (a *Analyzer) Analyze(ctx context.Context, tenantID string, req *domain.ClaimRequest) (*domain.AnalysisResult, error) {
	start := time.Now()
	current := stageNormalizing
	step := func(next stage) {
		current = next
		slog.Debug("analysis stage", "claim_id", req.ClaimID, "stage", string(current))
	}

	claim, err := normalize.Claim(tenantID, req)
	if err != nil {
		step(stageFailed)
		slog.Debug("claim rejected", "stage", string(current), "error", err)
		return nil, err
	}
	normalizeMs := time.Since(start).Milliseconds()

	step(stageResolving)
	resolveStart := time.Now()
	snap := a.resolver.Resolve(ctx, claim)
	resolveMs := time.Since(resolveStart).Milliseconds()

	step(stageEvaluating)
	evalStart := time.Now()
	outcomes := a.fanOut(ctx, claim, snap)
	evaluateMs := time.Since(evalStart).Milliseconds()

	step(stageAggregating)
	var hits []domain.RuleHit
	var skipped, degraded []string
	run := 0
	for i, out := range outcomes {
		id := a.evaluators[i].ID()
		switch {
		case out.skipped:
			skipped = append(skipped, id)
		case out.degraded:
			degraded = append(degraded, id)
		default:
			run++
			hits = append(hits, out.hits...)
		}
	}

	fraudScore := score.Aggregate(a.cfg, hits)

	step(stageClassifying)
	mode := score.Classify(a.cfg, fraudScore, hits)
	roi := score.EstimateROI(claim, snap, hits)

	step(stageDone)

	if hits == nil {
		hits = []domain.RuleHit{}
	}
	ncci, coverage, provider := domain.FlagsByType(hits)

	result := &domain.AnalysisResult{
		JobID:         uuid.New().String(),
		ClaimID:       claim.ClaimID,
		TenantID:      tenantID,
		FraudScore:    fraudScore,
		DecisionMode:  mode,
		RuleHits:      hits,
		NcciFlags:     ncci,
		CoverageFlags: coverage,
		ProviderFlags: provider,
		ROIEstimate:   roi,
		Timestamp:     time.Now().UTC(),
		Metadata: domain.AnalysisMetadata{
			NormalizeMs:        normalizeMs,
			ResolveMs:          resolveMs,
			EvaluateMs:         evaluateMs,
			TotalMs:            time.Since(start).Milliseconds(),
			EvaluatorsRun:      run,
			EvaluatorsSkipped:  skipped,
			EvaluatorsDegraded: degraded,
			ReferenceMissing:   snap.MissingTypes(),
			EngineVersion:      engineVersion,
		},
	}

	slog.Info("claim analyzed",
		"claim_id", claim.ClaimID,
		"tenant_id", tenantID,
		"score", fraudScore,
		"decision", string(mode),
		"hits", len(hits),
		"duration_ms", result.Metadata.TotalMs,
	)

	return result, nil
}

// fanOut runs every evaluator against the immutable snapshot with
// bounded concurrency and a per-evaluator timeout. Outcomes keep the
// registry's index order regardless of completion order.
func (a *Analyzer) fanOut(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []evalOutcome {
	outcomes := make([]evalOutcome, len(a.evaluators))

	maxWorkers := a.cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 16
	}
	sem := make(chan struct{}, maxWorkers)

	var wg sync.WaitGroup
	for i, ev := range a.evaluators {
		if skip := a.mustSkip(ev, snap); skip {
			outcomes[i] = evalOutcome{skipped: true}
			slog.Debug("evaluator skipped, reference data unavailable",
				"evaluator", ev.ID(),
				"claim_id", claim.ClaimID,
			)
			continue
		}

		wg.Add(1)
		go func(idx int, ev rules.Evaluator) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[idx] = a.runEvaluator(ctx, ev, claim, snap)
		}(i, ev)
	}
	wg.Wait()

	return outcomes
}

// mustSkip reports whether any reference type the evaluator requires
// degraded during resolution.
func (a *Analyzer) mustSkip(ev rules.Evaluator, snap *domain.ReferenceSnapshot) bool {
	for _, t := range ev.Requires() {
		if snap.Degraded(t) {
			return true
		}
	}
	return false
}

// runEvaluator invokes one evaluator with panic recovery and a timeout.
// A panicking or timed-out evaluator contributes zero hits and is
// recorded as degraded.
func (a *Analyzer) runEvaluator(ctx context.Context, ev rules.Evaluator, claim *domain.Claim, snap *domain.ReferenceSnapshot) evalOutcome {
	timeout := a.cfg.EvaluatorTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan []domain.RuleHit, 1)
	panicked := make(chan any, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicked <- r
			}
		}()
		done <- ev.Evaluate(evalCtx, claim, snap)
	}()

	select {
	case hits := <-done:
		return evalOutcome{hits: hits}
	case r := <-panicked:
		slog.Error("evaluator panicked",
			"evaluator", ev.ID(),
			"claim_id", claim.ClaimID,
			"panic", fmt.Sprint(r),
		)
		return evalOutcome{degraded: true}
	case <-evalCtx.Done():
		slog.Warn("evaluator timed out",
			"evaluator", ev.ID(),
			"claim_id", claim.ClaimID,
			"timeout", timeout.String(),
		)
		return evalOutcome{degraded: true}
	}
}
