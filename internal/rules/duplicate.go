package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

// DuplicateEvaluator detects repeat billing: the same
// member+procedure+date combination appearing in service history, or
// the same procedure repeated within the claim itself. Exact matches
// (same provider and amount) escalate to high.
type DuplicateEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *DuplicateEvaluator) ID() string                 { return "duplicate-service" }
func (e *DuplicateEvaluator) Type() domain.RuleType      { return domain.RuleTypeFinancial }
func (e *DuplicateEvaluator) Requires() []domain.RefType { return []domain.RefType{domain.RefHistory} }

func (e *DuplicateEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	var hits []domain.RuleHit

	// Repeats within the current claim.
	type lineGroup struct {
		count      int
		sameAmount bool
		amount     float64
	}
	groups := make(map[string]*lineGroup)
	for _, l := range claim.Lines {
		g := groups[l.ProcedureCode]
		if g == nil {
			groups[l.ProcedureCode] = &lineGroup{count: 1, sameAmount: true, amount: l.Amount}
			continue
		}
		g.count++
		if l.Amount != g.amount {
			g.sameAmount = false
		}
	}
	for _, code := range claim.ProcedureCodes() {
		g := groups[code]
		if g.count < 2 {
			continue
		}
		severity := domain.SeverityMedium
		desc := fmt.Sprintf("%s billed on %d lines of the same claim", code, g.count)
		if g.sameAmount {
			severity = domain.SeverityHigh
			desc = fmt.Sprintf("%s billed on %d identical lines of the same claim", code, g.count)
		}
		hits = append(hits, domain.RuleHit{
			RuleID:        e.ID(),
			ClaimID:       claim.ClaimID,
			Type:          e.Type(),
			Severity:      severity,
			Weight:        weightFor(e.cfg, severity),
			Description:   desc,
			Flag:          "intra_claim_duplicate:" + code,
			AffectedCodes: []string{code},
		})
	}

	// Matches against service history. Entries from this same claim id
	// are ignored so a re-analysis does not flag itself.
	flaggedCodes := make(map[string]bool)
	for _, l := range claim.Lines {
		if flaggedCodes[l.ProcedureCode] {
			continue
		}
		for _, h := range snap.History {
			if h.ClaimID == claim.ClaimID {
				continue
			}
			if h.ProcedureCode != l.ProcedureCode || !sameDay(h.DateOfService, claim.DateOfService) {
				continue
			}

			severity := domain.SeverityMedium
			desc := fmt.Sprintf("%s was already billed for this member on %s", l.ProcedureCode, claim.DateOfService.Format("2006-01-02"))
			if h.ProviderNPI == claim.BillingNPI && h.Amount == l.Amount {
				severity = domain.SeverityHigh
				desc = fmt.Sprintf("%s is an exact duplicate of a prior service (same provider, date, and amount)", l.ProcedureCode)
			}

			flaggedCodes[l.ProcedureCode] = true
			hits = append(hits, domain.RuleHit{
				RuleID:        e.ID(),
				ClaimID:       claim.ClaimID,
				Type:          e.Type(),
				Severity:      severity,
				Weight:        weightFor(e.cfg, severity),
				Description:   desc,
				Flag:          "history_duplicate:" + l.ProcedureCode,
				AffectedCodes: []string{l.ProcedureCode},
			})
			break
		}
	}

	return hits
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
