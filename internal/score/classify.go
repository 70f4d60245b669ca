package score

import (
	"github.com/opensource-health/kestrel/internal/domain"
)

// Classify maps a composite score and the hit set to a decision mode.
//
// The critical-hit override comes first and is independent of the
// numeric score: an OIG exclusion must hold the claim even if a
// miscalibrated weight table produced a low score.
func Classify(cfg domain.ScoringConfig, fraudScore float64, hits []domain.RuleHit) domain.DecisionMode {
	if domain.HasSeverity(hits, domain.SeverityCritical) {
		return domain.DecisionSoftHold
	}
	if fraudScore >= cfg.RecommendationThreshold {
		return domain.DecisionSoftHold
	}

	hasHigh := domain.HasSeverity(hits, domain.SeverityHigh)
	hasProvider := false
	for _, h := range hits {
		if h.Type == domain.RuleTypeProvider {
			hasProvider = true
			break
		}
	}

	switch {
	case fraudScore < cfg.FastApproveThreshold && !hasHigh:
		return domain.DecisionAutoApproveFast
	case fraudScore < cfg.ApproveThreshold && !hasHigh:
		return domain.DecisionAutoApprove
	case fraudScore < cfg.InformationalThreshold && !hasProvider:
		return domain.DecisionInformational
	default:
		return domain.DecisionRecommendation
	}
}
