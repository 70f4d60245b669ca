package rules

import (
	"context"
	"fmt"

	"github.com/opensource-health/kestrel/internal/domain"
)

// HighDollarEvaluator flags line amounts and claim totals above the
// configured thresholds. Needs no reference data.
type HighDollarEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *HighDollarEvaluator) ID() string                 { return "high-dollar" }
func (e *HighDollarEvaluator) Type() domain.RuleType      { return domain.RuleTypeFinancial }
func (e *HighDollarEvaluator) Requires() []domain.RefType { return nil }

func (e *HighDollarEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	var hits []domain.RuleHit

	lineThreshold := e.cfg.HighDollarLineThreshold
	if lineThreshold > 0 {
		for _, l := range claim.Lines {
			if l.Amount <= lineThreshold {
				continue
			}
			severity := domain.SeverityLow
			if l.Amount >= 2*lineThreshold {
				severity = domain.SeverityMedium
			}
			hits = append(hits, domain.RuleHit{
				RuleID:        e.ID(),
				ClaimID:       claim.ClaimID,
				Type:          e.Type(),
				Severity:      severity,
				Weight:        weightFor(e.cfg, severity),
				Description:   fmt.Sprintf("line %d (%s) billed at %.2f, above the %.2f line threshold", l.Number, l.ProcedureCode, l.Amount, lineThreshold),
				Flag:          fmt.Sprintf("high_dollar_line:%d", l.Number),
				AffectedCodes: []string{l.ProcedureCode},
			})
		}
	}

	claimThreshold := e.cfg.HighDollarClaimThreshold
	if claimThreshold > 0 {
		if total := claim.TotalAmount(); total > claimThreshold {
			hits = append(hits, domain.RuleHit{
				RuleID:      e.ID(),
				ClaimID:     claim.ClaimID,
				Type:        e.Type(),
				Severity:    domain.SeverityMedium,
				Weight:      weightFor(e.cfg, domain.SeverityMedium),
				Description: fmt.Sprintf("claim total %.2f exceeds the %.2f claim threshold", total, claimThreshold),
				Flag:        "high_dollar_claim",
			})
		}
	}

	return hits
}
