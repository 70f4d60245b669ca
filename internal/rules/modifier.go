package rules

import (
	"context"
	"fmt"

	"github.com/opensource-health/kestrel/internal/domain"
)

// ModifierEvaluator flags syntactically invalid modifiers, repeated
// modifiers on a line, and NCCI override modifiers used on lines with
// no edit pair to override. All findings are low severity.
type ModifierEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *ModifierEvaluator) ID() string                 { return "modifier-validity" }
func (e *ModifierEvaluator) Type() domain.RuleType      { return domain.RuleTypeModifier }
func (e *ModifierEvaluator) Requires() []domain.RefType { return nil }

func (e *ModifierEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	// Codes that occur in any applicable NCCI edit pair; an override
	// modifier elsewhere is inconsistent usage. If the NCCI table was
	// degraded, the consistency check is skipped (nil set).
	var editedCodes map[string]bool
	if !snap.Degraded(domain.RefNcciEdits) {
		editedCodes = make(map[string]bool, len(snap.NcciPairs)*2)
		for _, p := range snap.NcciPairs {
			editedCodes[p.Column1Code] = true
			editedCodes[p.Column2Code] = true
		}
	}

	var hits []domain.RuleHit
	hit := func(line *domain.ClaimLine, flag, desc string) {
		hits = append(hits, domain.RuleHit{
			RuleID:        e.ID(),
			ClaimID:       claim.ClaimID,
			Type:          e.Type(),
			Severity:      domain.SeverityLow,
			Weight:        weightFor(e.cfg, domain.SeverityLow),
			Description:   desc,
			Flag:          flag,
			AffectedCodes: []string{line.ProcedureCode},
		})
	}

	for i := range claim.Lines {
		l := &claim.Lines[i]
		seen := make(map[string]bool, len(l.Modifiers))
		for _, m := range l.Modifiers {
			if !validModifierSyntax(m) {
				hit(l, fmt.Sprintf("modifier_invalid:%d:%s", l.Number, m),
					fmt.Sprintf("line %d carries malformed modifier %q", l.Number, m))
				continue
			}
			if seen[m] {
				hit(l, fmt.Sprintf("modifier_repeated:%d:%s", l.Number, m),
					fmt.Sprintf("line %d repeats modifier %s", l.Number, m))
				continue
			}
			seen[m] = true

			if editedCodes != nil && isOverrideModifier(m) && !editedCodes[l.ProcedureCode] {
				hit(l, fmt.Sprintf("modifier_unsupported:%d:%s", l.Number, m),
					fmt.Sprintf("line %d uses bypass modifier %s but %s has no NCCI edit to override", l.Number, m, l.ProcedureCode))
			}
		}
	}
	return hits
}

// validModifierSyntax accepts exactly two uppercase alphanumerics.
func validModifierSyntax(m string) bool {
	if len(m) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := m[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func isOverrideModifier(m string) bool {
	for _, o := range overrideModifiers {
		if m == o {
			return true
		}
	}
	return false
}
