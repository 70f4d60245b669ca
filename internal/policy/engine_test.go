package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

func f(v float64) *float64 { return &v }

func testEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng
}

func boolPolicy(id, expr string) *domain.PolicyConfig {
	return &domain.PolicyConfig{
		ID:         id,
		TenantID:   "tenant-001",
		Name:       id,
		Expression: expr,
		Enabled:    true,
		Bands: []domain.PolicyBand{
			{LowerLimit: f(1), Severity: domain.SeverityMedium, Reason: "matched"},
		},
	}
}

func testClaim() *domain.Claim {
	return &domain.Claim{
		ClaimID:        "CLM-001",
		TenantID:       "tenant-001",
		MemberID:       "MBR-001",
		BillingNPI:     "1234567893",
		ClaimType:      domain.ClaimTypeProfessional,
		DateOfService:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DiagnosisCodes: []string{"E11.9"},
		Lines: []domain.ClaimLine{
			{Number: 1, ProcedureCode: "99213", Quantity: 1, Amount: 120},
			{Number: 2, ProcedureCode: "97110", Quantity: 4, Amount: 380},
		},
	}
}

func TestValidate(t *testing.T) {
	eng := testEngine(t)

	tests := []struct {
		name    string
		expr    string
		wantErr string
	}{
		{name: "BoolExpression", expr: `total_amount > 1000.0`},
		{name: "DoubleExpression", expr: `total_amount / 100.0`},
		{name: "IntExpression", expr: `line_count * 2`},
		{name: "ListMembership", expr: `"99213" in procedure_codes`},
		{
			name:    "SyntaxError",
			expr:    `total_amount >`,
			wantErr: "failed to compile",
		},
		{
			name:    "UnknownVariable",
			expr:    `servicing_state == "FL"`,
			wantErr: "failed to compile",
		},
		{
			name:    "StringResult",
			expr:    `claim_type`,
			wantErr: "must return bool, int, or double",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := boolPolicy("pol-"+tt.name, tt.expr)
			err := eng.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if eng.Count() != 0 {
		t.Errorf("Validate must not load policies, count=%d", eng.Count())
	}
}

func TestValidateNilConfig(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Validate(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestLoadAndEvaluate(t *testing.T) {
	eng := testEngine(t)

	cfg := boolPolicy("pol-high-total", `total_amount > 400.0`)
	cfg.Flag = "screening:high_total"
	if err := eng.Load(cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hits := eng.EvaluateAll(testClaim()) // total 500
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %v", hits)
	}
	hit := hits[0]
	if hit.RuleID != "pol-high-total" {
		t.Errorf("unexpected rule id %q", hit.RuleID)
	}
	if hit.Severity != domain.SeverityMedium {
		t.Errorf("expected medium severity, got %s", hit.Severity)
	}
	if hit.Flag != "screening:high_total" {
		t.Errorf("unexpected flag %q", hit.Flag)
	}
	if hit.Description != "matched" {
		t.Errorf("expected band reason, got %q", hit.Description)
	}
	if hit.ClaimID != "CLM-001" {
		t.Errorf("hit must carry the claim id, got %q", hit.ClaimID)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Load(boolPolicy("pol-huge", `total_amount > 100000.0`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if hits := eng.EvaluateAll(testClaim()); len(hits) != 0 {
		t.Errorf("expected no hits, got %v", hits)
	}
}

func TestDefaultFlag(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Load(boolPolicy("pol-units", `total_units >= 5.0`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hits := eng.EvaluateAll(testClaim()) // 5 units
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %v", hits)
	}
	if hits[0].Flag != "policy:pol-units" {
		t.Errorf("expected default flag, got %q", hits[0].Flag)
	}
}

func TestNumericBands(t *testing.T) {
	eng := testEngine(t)

	cfg := &domain.PolicyConfig{
		ID:         "pol-ratio",
		TenantID:   "tenant-001",
		Expression: `total_amount / 100.0`,
		Enabled:    true,
		Bands: []domain.PolicyBand{
			{UpperLimit: f(2), Reason: "pass"}, // empty severity: no hit
			{LowerLimit: f(2), UpperLimit: f(5), Severity: domain.SeverityLow, Reason: "elevated"},
			{LowerLimit: f(5), Severity: domain.SeverityMedium, Reason: "excessive"},
		},
	}
	if err := eng.Load(cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name   string
		amount float64
		want   domain.Severity
	}{
		{name: "PassBand", amount: 150, want: ""},
		{name: "LowerInclusive", amount: 200, want: domain.SeverityLow},
		{name: "MidBand", amount: 350, want: domain.SeverityLow},
		{name: "UpperExclusive", amount: 500, want: domain.SeverityMedium},
		{name: "OpenUpper", amount: 9000, want: domain.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := testClaim()
			claim.Lines = []domain.ClaimLine{{Number: 1, ProcedureCode: "99213", Quantity: 1, Amount: tt.amount}}

			hits := eng.EvaluateAll(claim)
			if tt.want == "" {
				if len(hits) != 0 {
					t.Fatalf("expected no hit, got %v", hits)
				}
				return
			}
			if len(hits) != 1 {
				t.Fatalf("expected 1 hit, got %v", hits)
			}
			if hits[0].Severity != tt.want {
				t.Errorf("expected %s, got %s", tt.want, hits[0].Severity)
			}
		})
	}
}

func TestCriticalDemotedToHigh(t *testing.T) {
	eng := testEngine(t)

	cfg := boolPolicy("pol-crit", `true`)
	cfg.Bands = []domain.PolicyBand{
		{LowerLimit: f(1), Severity: domain.SeverityCritical, Reason: "always"},
	}
	if err := eng.Load(cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hits := eng.EvaluateAll(testClaim())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %v", hits)
	}
	if hits[0].Severity != domain.SeverityHigh {
		t.Errorf("policy hits are capped at high, got %s", hits[0].Severity)
	}
}

func TestLoadAllSkipsDisabled(t *testing.T) {
	eng := testEngine(t)

	disabled := boolPolicy("pol-off", `true`)
	disabled.Enabled = false

	err := eng.LoadAll([]*domain.PolicyConfig{
		boolPolicy("pol-a", `true`),
		disabled,
		boolPolicy("pol-b", `line_count > 1`),
	})
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if eng.Count() != 2 {
		t.Errorf("expected 2 loaded, got %d", eng.Count())
	}

	hits := eng.EvaluateAll(testClaim())
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits in load order, got %v", hits)
	}
	if hits[0].RuleID != "pol-a" || hits[1].RuleID != "pol-b" {
		t.Errorf("hits out of load order: %s, %s", hits[0].RuleID, hits[1].RuleID)
	}
}

func TestReloadReplaces(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Load(boolPolicy("pol-old", `true`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := eng.Reload([]*domain.PolicyConfig{boolPolicy("pol-new", `true`)})
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	loaded := eng.Loaded()
	if len(loaded) != 1 || loaded[0].ID != "pol-new" {
		t.Errorf("expected only pol-new after reload, got %+v", loaded)
	}
}

func TestReloadRejectsBadPolicyAtomically(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Load(boolPolicy("pol-keep", `true`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := eng.Reload([]*domain.PolicyConfig{boolPolicy("pol-bad", `not valid (`)})
	if err == nil {
		t.Fatal("expected compile error from Reload")
	}

	// The previous set survives a failed reload.
	if eng.Count() != 1 || eng.Loaded()[0].ID != "pol-keep" {
		t.Errorf("failed reload must not clobber loaded policies, got %+v", eng.Loaded())
	}
}

func TestLoadUpdateKeepsOrder(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Load(boolPolicy("pol-a", `true`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := eng.Load(boolPolicy("pol-b", `true`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Re-loading an existing policy updates in place.
	if err := eng.Load(boolPolicy("pol-a", `false`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if eng.Count() != 2 {
		t.Errorf("expected 2 policies, got %d", eng.Count())
	}
	loaded := eng.Loaded()
	if loaded[0].ID != "pol-a" || loaded[1].ID != "pol-b" {
		t.Errorf("load order changed: %s, %s", loaded[0].ID, loaded[1].ID)
	}

	// pol-a now evaluates false, only pol-b hits.
	hits := eng.EvaluateAll(testClaim())
	if len(hits) != 1 || hits[0].RuleID != "pol-b" {
		t.Errorf("expected only pol-b to hit, got %v", hits)
	}
}

func TestWeightOverride(t *testing.T) {
	eng := testEngine(t)

	cfg := boolPolicy("pol-weighted", `true`)
	cfg.Weight = 0.42
	if err := eng.Load(cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hits := eng.EvaluateAll(testClaim())
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %v", hits)
	}
	if hits[0].Weight != 0.42 {
		t.Errorf("expected configured weight, got %.2f", hits[0].Weight)
	}
}

func TestClose(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Load(boolPolicy("pol-a", `true`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if eng.Count() != 0 {
		t.Errorf("expected empty engine after Close, got %d", eng.Count())
	}
	if hits := eng.EvaluateAll(testClaim()); hits != nil {
		t.Errorf("closed engine must evaluate to nothing, got %v", hits)
	}
}
