package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

// EligibilityEvaluator checks that the member had active coverage on
// the date of service. When the eligibility lookup degraded, the
// orchestrator skips this evaluator entirely; a member with no record
// on file is a finding, not missing data.
type EligibilityEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *EligibilityEvaluator) ID() string            { return "eligibility-coverage" }
func (e *EligibilityEvaluator) Type() domain.RuleType { return domain.RuleTypeCoverage }
func (e *EligibilityEvaluator) Requires() []domain.RefType {
	return []domain.RefType{domain.RefEligibility}
}

func (e *EligibilityEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	rec := snap.Eligibility

	if rec == nil {
		return []domain.RuleHit{{
			RuleID:      e.ID(),
			ClaimID:     claim.ClaimID,
			Type:        e.Type(),
			Severity:    domain.SeverityHigh,
			Weight:      weightFor(e.cfg, domain.SeverityHigh),
			Description: fmt.Sprintf("member %s has no eligibility record on file", claim.MemberID),
			Flag:        "no_eligibility_record",
		}}
	}

	if rec.CoversDate(claim.DateOfService) {
		return nil
	}

	desc := fmt.Sprintf("member %s had no active coverage on %s", claim.MemberID, claim.DateOfService.Format("2006-01-02"))
	if rec.Status != domain.CoverageActive {
		desc = fmt.Sprintf("member %s coverage status is %q", claim.MemberID, rec.Status)
	}

	return []domain.RuleHit{{
		RuleID:      e.ID(),
		ClaimID:     claim.ClaimID,
		Type:        e.Type(),
		Severity:    domain.SeverityHigh,
		Weight:      weightFor(e.cfg, domain.SeverityHigh),
		Description: desc,
		Flag:        "coverage_inactive",
	}}
}

// PriorAuthEvaluator checks that procedures requiring authorization are
// covered by an approved, unexpired authorization with sufficient
// approved units and amount. A missing authorization is high; one that
// exists but is expired or insufficient is medium.
type PriorAuthEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *PriorAuthEvaluator) ID() string            { return "prior-auth" }
func (e *PriorAuthEvaluator) Type() domain.RuleType { return domain.RuleTypeCoverage }
func (e *PriorAuthEvaluator) Requires() []domain.RefType {
	return []domain.RefType{domain.RefPriorAuth}
}

func (e *PriorAuthEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	// Aggregate billed units and amount per auth-required code.
	type usage struct{ units, amount float64 }
	billed := make(map[string]*usage)
	for _, l := range claim.Lines {
		if !e.cfg.RequiresAuth(l.ProcedureCode) {
			continue
		}
		u := billed[l.ProcedureCode]
		if u == nil {
			u = &usage{}
			billed[l.ProcedureCode] = u
		}
		u.units += l.Quantity
		u.amount += l.Amount
	}
	if len(billed) == 0 {
		return nil
	}

	auths := make(map[string][]domain.PriorAuthorization)
	for _, a := range snap.PriorAuths {
		auths[a.ProcedureCode] = append(auths[a.ProcedureCode], a)
	}

	var hits []domain.RuleHit
	for _, code := range claim.ProcedureCodes() {
		u, ok := billed[code]
		if !ok {
			continue
		}

		candidates := auths[code]
		if len(candidates) == 0 {
			hits = append(hits, domain.RuleHit{
				RuleID:        e.ID(),
				ClaimID:       claim.ClaimID,
				Type:          e.Type(),
				Severity:      domain.SeverityHigh,
				Weight:        weightFor(e.cfg, domain.SeverityHigh),
				Description:   fmt.Sprintf("%s requires prior authorization and none is on file", code),
				Flag:          "auth_missing:" + code,
				AffectedCodes: []string{code},
			})
			continue
		}

		covered := false
		for i := range candidates {
			if candidates[i].Covers(claim.DateOfService, u.units, u.amount) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}

		hits = append(hits, domain.RuleHit{
			RuleID:        e.ID(),
			ClaimID:       claim.ClaimID,
			Type:          e.Type(),
			Severity:      domain.SeverityMedium,
			Weight:        weightFor(e.cfg, domain.SeverityMedium),
			Description:   fmt.Sprintf("authorization on file for %s is expired, denied, or insufficient for billed units/amount", code),
			Flag:          "auth_insufficient:" + code,
			AffectedCodes: []string{code},
		})
	}
	return hits
}

// BenefitLimitEvaluator checks cumulative utilization (service history
// within the benefit period plus the current claim) against the plan's
// configured unit and amount ceilings.
type BenefitLimitEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *BenefitLimitEvaluator) ID() string            { return "benefit-limit" }
func (e *BenefitLimitEvaluator) Type() domain.RuleType { return domain.RuleTypeCoverage }
func (e *BenefitLimitEvaluator) Requires() []domain.RefType {
	return []domain.RefType{domain.RefBenefits, domain.RefHistory}
}

func (e *BenefitLimitEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	if len(snap.BenefitLimits) == 0 {
		return nil
	}

	var hits []domain.RuleHit
	for _, code := range claim.ProcedureCodes() {
		limit, ok := snap.BenefitLimits[code]
		if !ok {
			continue
		}

		periodStart := periodStart(claim, limit.Period)

		var units, amount float64
		for _, h := range snap.History {
			if h.ProcedureCode != code || h.DateOfService.Before(periodStart) {
				continue
			}
			units += h.Units
			amount += h.Amount
		}
		for _, l := range claim.Lines {
			if l.ProcedureCode == code {
				units += l.Quantity
				amount += l.Amount
			}
		}

		overUnits := limit.MaxUnits > 0 && units > limit.MaxUnits
		overAmount := limit.MaxAmount > 0 && amount > limit.MaxAmount
		if !overUnits && !overAmount {
			continue
		}

		desc := fmt.Sprintf("cumulative utilization of %s exceeds the plan benefit limit for the %s period", code, limit.Period)
		hits = append(hits, domain.RuleHit{
			RuleID:        e.ID(),
			ClaimID:       claim.ClaimID,
			Type:          e.Type(),
			Severity:      domain.SeverityMedium,
			Weight:        weightFor(e.cfg, domain.SeverityMedium),
			Description:   desc,
			Flag:          "benefit_exceeded:" + code,
			AffectedCodes: []string{code},
		})
	}
	return hits
}

// periodStart returns the start of the benefit period containing the
// claim's date of service.
func periodStart(claim *domain.Claim, period string) (start time.Time) {
	dos := claim.DateOfService
	switch period {
	case "month":
		return time.Date(dos.Year(), dos.Month(), 1, 0, 0, 0, 0, dos.Location())
	default: // "year"
		return time.Date(dos.Year(), time.January, 1, 0, 0, 0, 0, dos.Location())
	}
}
