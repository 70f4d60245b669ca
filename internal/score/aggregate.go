// Package score reduces rule hits to a composite fraud score, a
// decision mode, and a recovery estimate.
package score

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/opensource-health/kestrel/internal/domain"
)

// Aggregate combines rule hits into one score in [0,1] using a capped
// additive model: hit weights are summed per severity, each severity
// bucket saturates at its configured cap, and the bucket total is
// clamped to [0,1]. The caps guarantee that a pile of low-severity hits
// cannot climb into the band a single critical hit reaches, while the
// critical weight alone clears the hold threshold.
//
// Hits must arrive in evaluator-registration order; the computation is
// pure and total, so equal inputs always reduce to the same score.
func Aggregate(cfg domain.ScoringConfig, hits []domain.RuleHit) float64 {
	if len(hits) == 0 {
		return 0
	}

	buckets := make(map[domain.Severity]float64, 4)
	for _, h := range hits {
		buckets[h.Severity] += h.Weight
	}

	var total float64
	for _, sev := range []domain.Severity{
		domain.SeverityLow, domain.SeverityMedium,
		domain.SeverityHigh, domain.SeverityCritical,
	} {
		sum := buckets[sev]
		if sum <= 0 {
			// Mitigating (negative) weights reduce other buckets
			// rather than going below zero on their own.
			total += sum
			continue
		}
		if cap, ok := cfg.SeverityCaps[sev]; ok && sum > cap {
			sum = cap
		}
		total += sum
	}

	return saturate(cfg, total)
}

// saturate clamps the raw sum into [0,1] and enforces the score
// invariant: a non-finite result is a programming bug, not input data.
func saturate(cfg domain.ScoringConfig, raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		if cfg.StrictInvariants {
			panic(fmt.Sprintf("aggregate score invariant violated: %v", raw))
		}
		slog.Error("aggregate score invariant violated, clamping", "raw", raw)
		return 1
	}
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}
