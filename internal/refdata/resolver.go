// Package refdata resolves the reference data a claim analysis needs
// into one immutable snapshot.
package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

// Resolver batches reference lookups for a claim: one round trip per
// reference type, all types fetched concurrently. A type that fails to
// resolve degrades to absent and is recorded on the snapshot instead of
// failing the whole resolution.
type Resolver struct {
	store domain.ReferenceStore
	cache domain.Cache // optional read-through for slow-changing tables
	cfg   domain.ScoringConfig
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(store domain.ReferenceStore, cache domain.Cache, cfg domain.ScoringConfig) *Resolver {
	return &Resolver{store: store, cache: cache, cfg: cfg}
}

const cacheTTL = 10 * time.Minute

// Resolve fetches every reference record the rule evaluators might need
// for the claim. It always returns a snapshot; degraded types are listed
// in snapshot.Missing.
func (r *Resolver) Resolve(ctx context.Context, claim *domain.Claim) *domain.ReferenceSnapshot {
	timeout := r.cfg.ResolveTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap := &domain.ReferenceSnapshot{
		Providers:  make(map[string]*domain.ProviderRecord),
		Missing:    make(map[domain.RefType]bool),
		ResolvedAt: time.Now().UTC(),
	}

	codes := claim.ProcedureCodes()
	npis := claim.ProviderNPIs()
	since := claim.DateOfService.AddDate(0, 0, -r.lookbackDays())

	var mu sync.Mutex
	var wg sync.WaitGroup

	// fetch runs one reference-type lookup and records degradation on
	// failure. apply runs under the snapshot lock.
	fetch := func(t domain.RefType, do func(ctx context.Context) (func(), error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			apply, err := do(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				snap.Missing[t] = true
				slog.Warn("reference resolution degraded",
					"type", string(t),
					"claim_id", claim.ClaimID,
					"error", err,
				)
				return
			}
			apply()
		}()
	}

	fetch(domain.RefProviders, func(ctx context.Context) (func(), error) {
		recs, err := r.providers(ctx, claim.TenantID, npis)
		if err != nil {
			return nil, err
		}
		return func() { snap.Providers = recs }, nil
	})

	fetch(domain.RefEligibility, func(ctx context.Context) (func(), error) {
		rec, err := r.store.GetEligibility(ctx, claim.TenantID, claim.MemberID)
		if errors.Is(err, domain.ErrNotFound) {
			// Member has no eligibility on file: resolved, not degraded.
			return func() { snap.Eligibility = nil }, nil
		}
		if err != nil {
			return nil, err
		}
		return func() { snap.Eligibility = rec }, nil
	})

	fetch(domain.RefNcciEdits, func(ctx context.Context) (func(), error) {
		pairs, err := r.store.GetNcciPairs(ctx, claim.TenantID, codes)
		if err != nil {
			return nil, err
		}
		return func() { snap.NcciPairs = pairs }, nil
	})

	fetch(domain.RefMueLimits, func(ctx context.Context) (func(), error) {
		limits, err := r.mueLimits(ctx, claim.TenantID, codes)
		if err != nil {
			return nil, err
		}
		return func() { snap.MueLimits = limits }, nil
	})

	fetch(domain.RefBenefits, func(ctx context.Context) (func(), error) {
		limits, err := r.store.GetBenefitLimits(ctx, claim.TenantID, claim.MemberID, codes)
		if err != nil {
			return nil, err
		}
		return func() { snap.BenefitLimits = limits }, nil
	})

	fetch(domain.RefPriorAuth, func(ctx context.Context) (func(), error) {
		auths, err := r.store.GetPriorAuths(ctx, claim.TenantID, claim.MemberID)
		if err != nil {
			return nil, err
		}
		return func() { snap.PriorAuths = auths }, nil
	})

	fetch(domain.RefHistory, func(ctx context.Context) (func(), error) {
		entries, err := r.store.GetServiceHistory(ctx, claim.TenantID, claim.MemberID, since)
		if err != nil {
			return nil, err
		}
		return func() { snap.History = entries }, nil
	})

	wg.Wait()
	return snap
}

func (r *Resolver) lookbackDays() int {
	if r.cfg.LookbackDays > 0 {
		return r.cfg.LookbackDays
	}
	return 365
}

// providers fetches provider records with a read-through cache: the
// registry changes on a monthly OIG cycle, so short TTLs are safe.
func (r *Resolver) providers(ctx context.Context, tenantID string, npis []string) (map[string]*domain.ProviderRecord, error) {
	recs := make(map[string]*domain.ProviderRecord, len(npis))

	var missed []string
	if r.cache != nil {
		for _, npi := range npis {
			data, err := r.cache.Get(ctx, tenantID, "provider:"+npi)
			if err != nil || data == nil {
				missed = append(missed, npi)
				continue
			}
			var rec domain.ProviderRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				missed = append(missed, npi)
				continue
			}
			recs[npi] = &rec
		}
	} else {
		missed = npis
	}

	if len(missed) == 0 {
		return recs, nil
	}

	fetched, err := r.store.GetProviders(ctx, tenantID, missed)
	if err != nil {
		return nil, err
	}
	for npi, rec := range fetched {
		recs[npi] = rec
		if r.cache != nil {
			if data, err := json.Marshal(rec); err == nil {
				_ = r.cache.Set(ctx, tenantID, "provider:"+npi, data, cacheTTL)
			}
		}
	}
	return recs, nil
}

// mueLimits fetches MUE ceilings with a read-through cache; the edit
// tables are versioned quarterly.
func (r *Resolver) mueLimits(ctx context.Context, tenantID string, codes []string) (map[string]*domain.MueLimit, error) {
	limits := make(map[string]*domain.MueLimit, len(codes))

	var missed []string
	if r.cache != nil {
		for _, code := range codes {
			data, err := r.cache.Get(ctx, tenantID, "mue:"+code)
			if err != nil || data == nil {
				missed = append(missed, code)
				continue
			}
			var lim domain.MueLimit
			if err := json.Unmarshal(data, &lim); err != nil {
				missed = append(missed, code)
				continue
			}
			limits[code] = &lim
		}
	} else {
		missed = codes
	}

	if len(missed) == 0 {
		return limits, nil
	}

	fetched, err := r.store.GetMueLimits(ctx, tenantID, missed)
	if err != nil {
		return nil, err
	}
	for code, lim := range fetched {
		limits[code] = lim
		if r.cache != nil {
			if data, err := json.Marshal(lim); err == nil {
				_ = r.cache.Set(ctx, tenantID, "mue:"+code, data, cacheTTL)
			}
		}
	}
	return limits, nil
}
