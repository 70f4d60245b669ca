package rules

import (
	"context"
	"fmt"

	"github.com/opensource-health/kestrel/internal/domain"
)

// overrideModifiers are the NCCI bypass modifiers: distinct procedural
// service (59) and its X{EPSU} subsets.
var overrideModifiers = []string{"59", "XE", "XS", "XP", "XU"}

func hasOverrideModifier(line *domain.ClaimLine) bool {
	for _, m := range overrideModifiers {
		if line.HasModifier(m) {
			return true
		}
	}
	return false
}

// NcciPtpEvaluator checks every pair of procedure codes on the claim
// against the procedure-to-procedure edit table.
type NcciPtpEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *NcciPtpEvaluator) ID() string                 { return "ncci-ptp" }
func (e *NcciPtpEvaluator) Type() domain.RuleType      { return domain.RuleTypeNcci }
func (e *NcciPtpEvaluator) Requires() []domain.RefType { return []domain.RefType{domain.RefNcciEdits} }

func (e *NcciPtpEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	if len(snap.NcciPairs) == 0 {
		return nil
	}

	// Index edits by unordered code pair. Later effective dates win.
	edits := make(map[string]*domain.NcciEditPair, len(snap.NcciPairs))
	for i := range snap.NcciPairs {
		p := &snap.NcciPairs[i]
		if p.EffectiveDate.After(claim.DateOfService) {
			continue
		}
		key := pairKey(p.Column1Code, p.Column2Code)
		if prev, ok := edits[key]; !ok || p.EffectiveDate.After(prev.EffectiveDate) {
			edits[key] = p
		}
	}

	var hits []domain.RuleHit
	seen := make(map[string]bool)

	for i := range claim.Lines {
		for j := i + 1; j < len(claim.Lines); j++ {
			a, b := &claim.Lines[i], &claim.Lines[j]
			if a.ProcedureCode == b.ProcedureCode {
				continue
			}
			key := pairKey(a.ProcedureCode, b.ProcedureCode)
			if seen[key] {
				continue
			}
			edit, ok := edits[key]
			if !ok {
				continue
			}
			if edit.ModifierAllowed && (hasOverrideModifier(a) || hasOverrideModifier(b)) {
				continue
			}
			seen[key] = true
			hits = append(hits, domain.RuleHit{
				RuleID:        e.ID(),
				ClaimID:       claim.ClaimID,
				Type:          e.Type(),
				Severity:      domain.SeverityHigh,
				Weight:        weightFor(e.cfg, domain.SeverityHigh),
				Description:   fmt.Sprintf("procedure codes %s and %s conflict under NCCI PTP edits", edit.Column1Code, edit.Column2Code),
				Flag:          "ptp_conflict:" + edit.Column1Code + "+" + edit.Column2Code,
				AffectedCodes: []string{edit.Column1Code, edit.Column2Code},
				Citation:      edit.Citation,
			})
		}
	}
	return hits
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// MueEvaluator sums units per procedure code across line items and
// compares against the per-day MUE ceiling. Severity escalates with the
// overage ratio: medium below 1.5x, high from 1.5x, critical from 3x.
type MueEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *MueEvaluator) ID() string                 { return "mue-units" }
func (e *MueEvaluator) Type() domain.RuleType      { return domain.RuleTypeNcci }
func (e *MueEvaluator) Requires() []domain.RefType { return []domain.RefType{domain.RefMueLimits} }

func (e *MueEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	if len(snap.MueLimits) == 0 {
		return nil
	}

	units := make(map[string]float64)
	for _, l := range claim.Lines {
		units[l.ProcedureCode] += l.Quantity
	}

	var hits []domain.RuleHit
	for _, code := range claim.ProcedureCodes() {
		limit, ok := snap.MueLimits[code]
		if !ok || limit.MaxUnits <= 0 {
			continue
		}
		billed := units[code]
		if billed <= limit.MaxUnits {
			continue
		}

		ratio := billed / limit.MaxUnits
		severity := domain.SeverityMedium
		switch {
		case ratio >= 3.0:
			severity = domain.SeverityCritical
		case ratio >= 1.5:
			severity = domain.SeverityHigh
		}

		hits = append(hits, domain.RuleHit{
			RuleID:        e.ID(),
			ClaimID:       claim.ClaimID,
			Type:          e.Type(),
			Severity:      severity,
			Weight:        weightFor(e.cfg, severity),
			Description:   fmt.Sprintf("%s billed at %.0f units, MUE ceiling is %.0f (%.1fx)", code, billed, limit.MaxUnits, ratio),
			Flag:          "mue_exceeded:" + code,
			AffectedCodes: []string{code},
			Citation:      limit.Rationale,
		})
	}
	return hits
}
