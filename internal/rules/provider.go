package rules

import (
	"context"
	"fmt"

	"github.com/opensource-health/kestrel/internal/domain"
)

// ProviderExclusionEvaluator checks the billing, rendering, and
// facility providers against the OIG exclusion list and the internal
// watchlist. An exclusion effective on or before the date of service is
// always critical.
type ProviderExclusionEvaluator struct {
	cfg domain.ScoringConfig
}

func (e *ProviderExclusionEvaluator) ID() string            { return "provider-exclusion" }
func (e *ProviderExclusionEvaluator) Type() domain.RuleType { return domain.RuleTypeProvider }
func (e *ProviderExclusionEvaluator) Requires() []domain.RefType {
	return []domain.RefType{domain.RefProviders}
}

func (e *ProviderExclusionEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	roles := []struct {
		role string
		npi  string
	}{
		{"billing", claim.BillingNPI},
		{"rendering", claim.RenderingNPI},
		{"facility", claim.FacilityNPI},
	}

	var hits []domain.RuleHit
	flagged := make(map[string]bool)

	for _, r := range roles {
		if r.npi == "" || flagged[r.npi] {
			continue
		}
		rec, ok := snap.Providers[r.npi]
		if !ok {
			// NPI not in the registry: nothing to assert either way.
			continue
		}

		if rec.ExcludedAsOf(claim.DateOfService) {
			flagged[r.npi] = true
			hits = append(hits, domain.RuleHit{
				RuleID:        e.ID(),
				ClaimID:       claim.ClaimID,
				Type:          e.Type(),
				Severity:      domain.SeverityCritical,
				Weight:        weightFor(e.cfg, domain.SeverityCritical),
				Description:   fmt.Sprintf("%s provider %s is OIG-excluded as of the date of service", r.role, r.npi),
				Flag:          "oig_excluded:" + r.npi,
				AffectedCodes: []string{r.npi},
				Citation:      "42 CFR 1001.1901",
			})
			continue
		}

		if rec.Watchlist {
			flagged[r.npi] = true
			hits = append(hits, domain.RuleHit{
				RuleID:        e.ID(),
				ClaimID:       claim.ClaimID,
				Type:          e.Type(),
				Severity:      domain.SeverityMedium,
				Weight:        weightFor(e.cfg, domain.SeverityMedium),
				Description:   fmt.Sprintf("%s provider %s is on the internal watchlist", r.role, r.npi),
				Flag:          "watchlist:" + r.npi,
				AffectedCodes: []string{r.npi},
			})
		}
	}
	return hits
}
