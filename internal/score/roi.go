package score

import (
	"strings"

	"github.com/opensource-health/kestrel/internal/domain"
)

// EstimateROI computes the estimated recoverable overpayment implied by
// the hit set: duplicate billing amounts, the lesser line of an NCCI
// conflict, and units billed beyond MUE or benefit ceilings at the
// claim's effective unit rate. Hits with no determinable dollar impact
// (eligibility, exclusions) contribute nothing; when nothing is
// quantifiable the estimate is nil, not zero.
func EstimateROI(claim *domain.Claim, snap *domain.ReferenceSnapshot, hits []domain.RuleHit) *float64 {
	if len(hits) == 0 {
		return nil
	}

	codeTotal := make(map[string]float64)
	codeUnits := make(map[string]float64)
	codeMaxLine := make(map[string]float64)
	for _, l := range claim.Lines {
		codeTotal[l.ProcedureCode] += l.Amount
		codeUnits[l.ProcedureCode] += l.Quantity
		if l.Amount > codeMaxLine[l.ProcedureCode] {
			codeMaxLine[l.ProcedureCode] = l.Amount
		}
	}

	unitRate := func(code string) float64 {
		if codeUnits[code] <= 0 {
			return 0
		}
		return codeTotal[code] / codeUnits[code]
	}

	var total float64
	quantified := false
	add := func(amount float64) {
		if amount > 0 {
			total += amount
			quantified = true
		}
	}

	for _, h := range hits {
		switch {
		case strings.HasPrefix(h.Flag, "intra_claim_duplicate:"):
			// Everything past the first line for the code.
			code := h.AffectedCodes[0]
			add(codeTotal[code] - codeMaxLine[code])

		case strings.HasPrefix(h.Flag, "history_duplicate:"):
			// The prior service already exists; the whole current
			// billing for the code is recoverable.
			add(codeTotal[h.AffectedCodes[0]])

		case strings.HasPrefix(h.Flag, "ptp_conflict:"):
			// The lesser of the two conflicting code totals.
			if len(h.AffectedCodes) == 2 {
				a := codeTotal[h.AffectedCodes[0]]
				b := codeTotal[h.AffectedCodes[1]]
				if b < a {
					a = b
				}
				add(a)
			}

		case strings.HasPrefix(h.Flag, "mue_exceeded:"):
			code := h.AffectedCodes[0]
			if lim, ok := snap.MueLimits[code]; ok && codeUnits[code] > lim.MaxUnits {
				add((codeUnits[code] - lim.MaxUnits) * unitRate(code))
			}

		case strings.HasPrefix(h.Flag, "benefit_exceeded:"):
			code := h.AffectedCodes[0]
			lim, ok := snap.BenefitLimits[code]
			if !ok {
				continue
			}
			if lim.MaxUnits > 0 && codeUnits[code] > lim.MaxUnits {
				add((codeUnits[code] - lim.MaxUnits) * unitRate(code))
			} else if lim.MaxAmount > 0 && codeTotal[code] > lim.MaxAmount {
				add(codeTotal[code] - lim.MaxAmount)
			}
		}
	}

	if !quantified {
		return nil
	}
	// Recovery cannot exceed what the claim bills.
	if claimTotal := claim.TotalAmount(); total > claimTotal {
		total = claimTotal
	}
	return &total
}
