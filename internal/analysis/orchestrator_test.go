package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/normalize"
	"github.com/opensource-health/kestrel/internal/refdata"
	"github.com/opensource-health/kestrel/internal/rules"
)

// fakeStore backs the resolver with canned reference data. Methods not
// overridden by a wrapper panic through the embedded nil interface,
// keeping the test honest about what the pipeline touches.
type fakeStore struct {
	domain.ReferenceStore

	providers   map[string]*domain.ProviderRecord
	eligibility *domain.EligibilityRecord
	eligErr     error
}

func (s *fakeStore) GetProviders(ctx context.Context, tenantID string, npis []string) (map[string]*domain.ProviderRecord, error) {
	out := make(map[string]*domain.ProviderRecord)
	for _, npi := range npis {
		if rec, ok := s.providers[npi]; ok {
			out[npi] = rec
		}
	}
	return out, nil
}

func (s *fakeStore) GetEligibility(ctx context.Context, tenantID string, memberID string) (*domain.EligibilityRecord, error) {
	if s.eligErr != nil {
		return nil, s.eligErr
	}
	if s.eligibility == nil {
		return nil, domain.ErrNotFound
	}
	return s.eligibility, nil
}

func (s *fakeStore) GetNcciPairs(ctx context.Context, tenantID string, codes []string) ([]domain.NcciEditPair, error) {
	return nil, nil
}

func (s *fakeStore) GetMueLimits(ctx context.Context, tenantID string, codes []string) (map[string]*domain.MueLimit, error) {
	return map[string]*domain.MueLimit{}, nil
}

func (s *fakeStore) GetBenefitLimits(ctx context.Context, tenantID string, memberID string, codes []string) (map[string]*domain.BenefitLimit, error) {
	return map[string]*domain.BenefitLimit{}, nil
}

func (s *fakeStore) GetPriorAuths(ctx context.Context, tenantID string, memberID string) ([]domain.PriorAuthorization, error) {
	return nil, nil
}

func (s *fakeStore) GetServiceHistory(ctx context.Context, tenantID string, memberID string, since time.Time) ([]domain.ServiceHistoryEntry, error) {
	return nil, nil
}

func cleanStore() *fakeStore {
	return &fakeStore{
		providers: map[string]*domain.ProviderRecord{
			"1234567893": {NPI: "1234567893", Name: "Dr. Adams"},
		},
		eligibility: &domain.EligibilityRecord{
			MemberID:      "MBR-001",
			Status:        domain.CoverageActive,
			PlanID:        "PLAN-GOLD",
			EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func newAnalyzer(store domain.ReferenceStore) *Analyzer {
	cfg := domain.DefaultScoringConfig()
	cfg.StrictInvariants = true
	resolver := refdata.NewResolver(store, nil, cfg)
	return NewAnalyzer(resolver, rules.Registry(cfg, nil), cfg)
}

func cleanRequest() *domain.ClaimRequest {
	return &domain.ClaimRequest{
		ClaimID:        "CLM-001",
		MemberID:       "MBR-001",
		BillingNPI:     "1234567893",
		ClaimType:      "professional",
		DateOfService:  "2026-03-10",
		DiagnosisCodes: []string{"E11.9"},
		Items: []domain.ItemRequest{
			{ProcedureCode: "99213", Quantity: 1, LineAmount: 120},
		},
	}
}

func TestAnalyzeCleanClaim(t *testing.T) {
	analyzer := newAnalyzer(cleanStore())

	res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if res.JobID == "" {
		t.Error("expected job id")
	}
	if res.ClaimID != "CLM-001" || res.TenantID != "tenant-001" {
		t.Errorf("unexpected identity: %s / %s", res.ClaimID, res.TenantID)
	}
	if res.FraudScore != 0 {
		t.Errorf("expected score 0, got %.2f", res.FraudScore)
	}
	if res.DecisionMode != domain.DecisionAutoApproveFast {
		t.Errorf("expected auto_approve_fast, got %s", res.DecisionMode)
	}
	if res.RuleHits == nil || len(res.RuleHits) != 0 {
		t.Errorf("expected empty (non-nil) hit list, got %v", res.RuleHits)
	}
	if res.ROIEstimate != nil {
		t.Errorf("expected nil ROI for clean claim, got %v", *res.ROIEstimate)
	}
	if res.Metadata.EvaluatorsRun != 9 {
		t.Errorf("expected 9 evaluators run, got %d", res.Metadata.EvaluatorsRun)
	}
	if len(res.Metadata.EvaluatorsSkipped) != 0 || len(res.Metadata.EvaluatorsDegraded) != 0 {
		t.Errorf("expected no skips or degradation, got %v / %v",
			res.Metadata.EvaluatorsSkipped, res.Metadata.EvaluatorsDegraded)
	}
	if res.Metadata.EngineVersion == "" {
		t.Error("expected engine version in metadata")
	}
}

func TestAnalyzeInvalidClaim(t *testing.T) {
	analyzer := newAnalyzer(cleanStore())

	req := cleanRequest()
	req.MemberID = ""
	req.Items = nil

	_, err := analyzer.Analyze(context.Background(), "tenant-001", req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *normalize.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if len(verr.Violations) < 2 {
		t.Errorf("expected violations for memberId and items, got %+v", verr.Violations)
	}
}

func TestAnalyzeExcludedProvider(t *testing.T) {
	store := cleanStore()
	exclusion := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.providers["1234567893"] = &domain.ProviderRecord{
		NPI: "1234567893", Excluded: true, ExclusionDate: &exclusion,
	}
	analyzer := newAnalyzer(store)

	res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if res.DecisionMode != domain.DecisionSoftHold {
		t.Errorf("expected soft_hold, got %s", res.DecisionMode)
	}
	if len(res.ProviderFlags) != 1 {
		t.Errorf("expected 1 provider flag, got %v", res.ProviderFlags)
	}
}

func TestAnalyzeDegradedEligibility(t *testing.T) {
	// A failing eligibility lookup must skip the evaluator, not treat
	// the member as uncovered.
	store := cleanStore()
	store.eligErr = fmt.Errorf("connection refused")
	analyzer := newAnalyzer(store)

	res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	skipped := false
	for _, id := range res.Metadata.EvaluatorsSkipped {
		if id == "eligibility-coverage" {
			skipped = true
		}
	}
	if !skipped {
		t.Errorf("expected eligibility-coverage skipped, got %v", res.Metadata.EvaluatorsSkipped)
	}

	missing := false
	for _, tp := range res.Metadata.ReferenceMissing {
		if tp == "eligibility" {
			missing = true
		}
	}
	if !missing {
		t.Errorf("expected eligibility in referenceMissing, got %v", res.Metadata.ReferenceMissing)
	}

	// No coverage hit may appear: abstention is not a finding.
	if len(res.CoverageFlags) != 0 {
		t.Errorf("skipped evaluator must not emit hits, got %v", res.CoverageFlags)
	}
}

func TestAnalyzeMemberWithoutEligibility(t *testing.T) {
	// "No record on file" resolves successfully and IS a finding.
	store := cleanStore()
	store.eligibility = nil
	analyzer := newAnalyzer(store)

	res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(res.CoverageFlags) != 1 || res.CoverageFlags[0] != "no_eligibility_record" {
		t.Errorf("expected no_eligibility_record flag, got %v", res.CoverageFlags)
	}
	if len(res.Metadata.EvaluatorsSkipped) != 0 {
		t.Errorf("nothing should be skipped, got %v", res.Metadata.EvaluatorsSkipped)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	store := cleanStore()
	store.eligibility = nil // produces one hit per run
	analyzer := newAnalyzer(store)

	first, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if res.FraudScore != first.FraudScore {
			t.Fatalf("score not deterministic: %.4f vs %.4f", first.FraudScore, res.FraudScore)
		}
		if res.DecisionMode != first.DecisionMode {
			t.Fatalf("decision not deterministic: %s vs %s", first.DecisionMode, res.DecisionMode)
		}
		if len(res.RuleHits) != len(first.RuleHits) {
			t.Fatalf("hit count not deterministic: %d vs %d", len(first.RuleHits), len(res.RuleHits))
		}
		for j := range res.RuleHits {
			if res.RuleHits[j].RuleID != first.RuleHits[j].RuleID {
				t.Fatalf("hit order not deterministic at %d: %s vs %s",
					j, first.RuleHits[j].RuleID, res.RuleHits[j].RuleID)
			}
		}
	}
}

// panicEvaluator blows up on every claim.
type panicEvaluator struct{}

func (e *panicEvaluator) ID() string                 { return "panic-test" }
func (e *panicEvaluator) Type() domain.RuleType      { return domain.RuleTypeFinancial }
func (e *panicEvaluator) Requires() []domain.RefType { return nil }
func (e *panicEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	panic("boom")
}

func TestAnalyzePanicRecovery(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.StrictInvariants = true
	resolver := refdata.NewResolver(cleanStore(), nil, cfg)
	evaluators := append(rules.Registry(cfg, nil), &panicEvaluator{})
	analyzer := NewAnalyzer(resolver, evaluators, cfg)

	res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("a panicking evaluator must not fail the analysis: %v", err)
	}

	degraded := false
	for _, id := range res.Metadata.EvaluatorsDegraded {
		if id == "panic-test" {
			degraded = true
		}
	}
	if !degraded {
		t.Errorf("expected panic-test in degraded list, got %v", res.Metadata.EvaluatorsDegraded)
	}
	if res.DecisionMode != domain.DecisionAutoApproveFast {
		t.Errorf("remaining evaluators should still fast-approve, got %s", res.DecisionMode)
	}
}

// slowEvaluator sleeps past the configured timeout without honoring
// cancellation, the worst case for a stuck check.
type slowEvaluator struct{}

func (e *slowEvaluator) ID() string                 { return "slow-test" }
func (e *slowEvaluator) Type() domain.RuleType      { return domain.RuleTypeFinancial }
func (e *slowEvaluator) Requires() []domain.RefType { return nil }
func (e *slowEvaluator) Evaluate(ctx context.Context, claim *domain.Claim, snap *domain.ReferenceSnapshot) []domain.RuleHit {
	time.Sleep(3 * time.Second)
	return nil
}

func TestAnalyzeEvaluatorTimeout(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.StrictInvariants = true
	cfg.EvaluatorTimeout = 50 * time.Millisecond
	resolver := refdata.NewResolver(cleanStore(), nil, cfg)
	evaluators := append(rules.Registry(cfg, nil), &slowEvaluator{})
	analyzer := NewAnalyzer(resolver, evaluators, cfg)

	start := time.Now()
	res, err := analyzer.Analyze(context.Background(), "tenant-001", cleanRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("analysis waited on the slow evaluator: %v", elapsed)
	}

	degraded := false
	for _, id := range res.Metadata.EvaluatorsDegraded {
		if id == "slow-test" {
			degraded = true
		}
	}
	if !degraded {
		t.Errorf("expected slow-test in degraded list, got %v", res.Metadata.EvaluatorsDegraded)
	}
}
