package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-health/kestrel/internal/analysis"
	"github.com/opensource-health/kestrel/internal/bus"
	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/refdata"
	"github.com/opensource-health/kestrel/internal/rules"
)

// stubStore backs the resolver with canned reference data. Methods not
// overridden panic via the embedded nil interface, which keeps the test
// honest about what the worker actually touches.
type stubStore struct {
	domain.ReferenceStore

	mu    sync.Mutex
	saved []*domain.AnalysisResult
}

func (s *stubStore) GetProviders(ctx context.Context, tenantID string, npis []string) (map[string]*domain.ProviderRecord, error) {
	out := make(map[string]*domain.ProviderRecord, len(npis))
	for _, npi := range npis {
		out[npi] = &domain.ProviderRecord{NPI: npi}
	}
	return out, nil
}

func (s *stubStore) GetEligibility(ctx context.Context, tenantID string, memberID string) (*domain.EligibilityRecord, error) {
	return &domain.EligibilityRecord{
		MemberID:      memberID,
		Status:        domain.CoverageActive,
		PlanID:        "plan-gold",
		EffectiveDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubStore) GetNcciPairs(ctx context.Context, tenantID string, codes []string) ([]domain.NcciEditPair, error) {
	return nil, nil
}

func (s *stubStore) GetMueLimits(ctx context.Context, tenantID string, codes []string) (map[string]*domain.MueLimit, error) {
	return map[string]*domain.MueLimit{}, nil
}

func (s *stubStore) GetBenefitLimits(ctx context.Context, tenantID string, memberID string, codes []string) (map[string]*domain.BenefitLimit, error) {
	return map[string]*domain.BenefitLimit{}, nil
}

func (s *stubStore) GetPriorAuths(ctx context.Context, tenantID string, memberID string) ([]domain.PriorAuthorization, error) {
	return nil, nil
}

func (s *stubStore) GetServiceHistory(ctx context.Context, tenantID string, memberID string, since time.Time) ([]domain.ServiceHistoryEntry, error) {
	return nil, nil
}

func (s *stubStore) SaveAnalysis(ctx context.Context, tenantID string, res *domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, res)
	return nil
}

func (s *stubStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func newTestAnalyzer(store domain.ReferenceStore) *analysis.Analyzer {
	cfg := domain.DefaultScoringConfig()
	resolver := refdata.NewResolver(store, nil, cfg)
	evaluators := rules.Registry(cfg, nil)
	return analysis.NewAnalyzer(resolver, evaluators, cfg)
}

func cleanClaim(claimID string) *domain.ClaimRequest {
	return &domain.ClaimRequest{
		ClaimID:        claimID,
		MemberID:       "M-1001",
		BillingNPI:     "1234567890",
		ClaimType:      domain.ClaimTypeProfessional,
		DateOfService:  "2026-03-10",
		DiagnosisCodes: []string{"E11.9"},
		Items: []domain.ItemRequest{
			{ProcedureCode: "99213", Quantity: 1, LineAmount: 120},
		},
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	store := &stubStore{}
	analyzer := newTestAnalyzer(store)

	worker := NewWorker(eventBus, store, analyzer)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessClaim", func(t *testing.T) {
		w := NewWorker(eventBus, store, analyzer)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var resultReceived atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			resultReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		claimMsg := ClaimMessage{
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			Claim:    cleanClaim("CLM-001"),
		}

		payload, _ := json.Marshal(claimMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicClaimSubmitted, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(200 * time.Millisecond)

		if !resultReceived.Load() {
			t.Fatal("expected analysis result to be published")
		}

		var res domain.AnalysisResult
		if err := json.Unmarshal(resultPayload, &res); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}

		if res.ClaimID != "CLM-001" {
			t.Errorf("expected claimID 'CLM-001', got '%s'", res.ClaimID)
		}
		if res.TenantID != "tenant-test" {
			t.Errorf("expected tenantID 'tenant-test', got '%s'", res.TenantID)
		}
		if res.DecisionMode != domain.DecisionAutoApproveFast {
			t.Errorf("expected clean claim to fast-approve, got '%s'", res.DecisionMode)
		}

		if store.savedCount() == 0 {
			t.Error("expected analysis to be persisted")
		}
	})

	t.Run("HoldPublished", func(t *testing.T) {
		// Excluded billing provider forces a soft hold regardless of score.
		holdStore := &stubStore{}
		excluded := newTestAnalyzer(&excludedProviderStore{stubStore: holdStore})

		w := NewWorker(eventBus, holdStore, excluded)

		cfg := Config{
			TenantIDs: []string{"tenant-hold"},
		}
		w.Start(cfg)
		defer w.Stop()

		var holdReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-hold", domain.TopicClaimHold, func(ctx context.Context, msg *domain.Message) error {
			holdReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		claimMsg := ClaimMessage{
			TenantID: "tenant-hold",
			Claim:    cleanClaim("CLM-HOLD"),
		}

		payload, _ := json.Marshal(claimMsg)
		eventBus.Publish(context.Background(), "tenant-hold", domain.TopicClaimSubmitted, payload)

		time.Sleep(200 * time.Millisecond)

		if !holdReceived.Load() {
			t.Error("expected hold to be published for excluded-provider claim")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, store, analyzer)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

// excludedProviderStore marks every provider as OIG-excluded.
type excludedProviderStore struct {
	*stubStore
}

func (s *excludedProviderStore) GetProviders(ctx context.Context, tenantID string, npis []string) (map[string]*domain.ProviderRecord, error) {
	out := make(map[string]*domain.ProviderRecord, len(npis))
	for _, npi := range npis {
		out[npi] = &domain.ProviderRecord{NPI: npi, Excluded: true}
	}
	return out, nil
}

func TestClaimMessageParsing(t *testing.T) {
	msg := ClaimMessage{
		TenantID: "tenant-001",
		TraceID:  "trace-456",
		Claim:    cleanClaim("CLM-123"),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed ClaimMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.Claim == nil || parsed.Claim.ClaimID != "CLM-123" {
		t.Errorf("expected ClaimID 'CLM-123', got %+v", parsed.Claim)
	}
	if parsed.TraceID != msg.TraceID {
		t.Errorf("expected TraceID '%s', got '%s'", msg.TraceID, parsed.TraceID)
	}
}
