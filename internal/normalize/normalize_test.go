package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

func validRequest() *domain.ClaimRequest {
	ptr := 1
	return &domain.ClaimRequest{
		ClaimID:        "CLM-001",
		MemberID:       "MBR-001",
		BillingNPI:     "1234567893",
		ClaimType:      "professional",
		DateOfService:  "2026-03-10",
		DiagnosisCodes: []string{"e11.9", "I10"},
		Items: []domain.ItemRequest{
			{ProcedureCode: " 99213 ", Quantity: 1, LineAmount: 120, Modifiers: []string{"25", " lt "}, DiagnosisPointer: &ptr},
		},
	}
}

func violationFields(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

func requireField(t *testing.T, fields []string, want string) {
	t.Helper()
	for _, f := range fields {
		if f == want {
			return
		}
	}
	t.Errorf("expected violation on %q, got %v", want, fields)
}

func TestClaimValid(t *testing.T) {
	claim, err := Claim("tenant-001", validRequest())
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if claim.TenantID != "tenant-001" {
		t.Errorf("tenant not carried: %s", claim.TenantID)
	}
	if claim.ClaimType != domain.ClaimTypeProfessional {
		t.Errorf("unexpected claim type %q", claim.ClaimType)
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !claim.DateOfService.Equal(want) {
		t.Errorf("unexpected DOS %v", claim.DateOfService)
	}
	if claim.SubmittedAt.IsZero() {
		t.Error("SubmittedAt not set")
	}
}

func TestClaimCanonicalization(t *testing.T) {
	claim, err := Claim("tenant-001", validRequest())
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if claim.DiagnosisCodes[0] != "E11.9" {
		t.Errorf("diagnosis not uppercased: %q", claim.DiagnosisCodes[0])
	}
	line := claim.Lines[0]
	if line.ProcedureCode != "99213" {
		t.Errorf("procedure code not trimmed: %q", line.ProcedureCode)
	}
	if len(line.Modifiers) != 2 || line.Modifiers[1] != "LT" {
		t.Errorf("modifiers not canonicalized: %v", line.Modifiers)
	}
	if line.Number != 1 {
		t.Errorf("line numbers are 1-based, got %d", line.Number)
	}
}

func TestClaimTypeCaseInsensitive(t *testing.T) {
	req := validRequest()
	req.ClaimType = "  Institutional "

	claim, err := Claim("tenant-001", req)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claim.ClaimType != domain.ClaimTypeInstitutional {
		t.Errorf("expected institutional, got %q", claim.ClaimType)
	}
}

func TestClaimDiagnosisPointer(t *testing.T) {
	req := validRequest()
	ptr := 2
	req.Items[0].DiagnosisPointer = &ptr

	claim, err := Claim("tenant-001", req)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claim.Lines[0].DiagnosisCode != "I10" {
		t.Errorf("pointer 2 should resolve to I10, got %q", claim.Lines[0].DiagnosisCode)
	}
}

func TestClaimMissingFields(t *testing.T) {
	req := &domain.ClaimRequest{}

	_, err := Claim("tenant-001", req)
	if err == nil {
		t.Fatal("expected error")
	}

	fields := violationFields(t, err)
	for _, want := range []string{"claimId", "memberId", "billingNpi", "claimType", "dateOfService", "items"} {
		requireField(t, fields, want)
	}
}

func TestClaimRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ClaimRequest)
		field   string
		message string
	}{
		{
			name:   "UnknownClaimType",
			mutate: func(r *domain.ClaimRequest) { r.ClaimType = "dental" },
			field:  "claimType",
		},
		{
			name:    "BadDateFormat",
			mutate:  func(r *domain.ClaimRequest) { r.DateOfService = "03/10/2026" },
			field:   "dateOfService",
			message: "YYYY-MM-DD",
		},
		{
			name:   "BlankClaimID",
			mutate: func(r *domain.ClaimRequest) { r.ClaimID = "   " },
			field:  "claimId",
		},
		{
			name:   "EmptyDiagnosisCode",
			mutate: func(r *domain.ClaimRequest) { r.DiagnosisCodes = []string{"E11.9", "  "} },
			field:  "diagnosisCodes[1]",
		},
		{
			name:   "EmptyProcedureCode",
			mutate: func(r *domain.ClaimRequest) { r.Items[0].ProcedureCode = "" },
			field:  "items[0].procedureCode",
		},
		{
			name:   "NegativeQuantity",
			mutate: func(r *domain.ClaimRequest) { r.Items[0].Quantity = -1 },
			field:  "items[0].quantity",
		},
		{
			name:   "NegativeAmount",
			mutate: func(r *domain.ClaimRequest) { r.Items[0].LineAmount = -0.01 },
			field:  "items[0].lineAmount",
		},
		{
			name: "PointerOutOfRange",
			mutate: func(r *domain.ClaimRequest) {
				ptr := 3
				r.Items[0].DiagnosisPointer = &ptr
			},
			field: "items[0].diagnosisPointer",
		},
		{
			name: "PointerBelowOne",
			mutate: func(r *domain.ClaimRequest) {
				ptr := 0
				r.Items[0].DiagnosisPointer = &ptr
			},
			field: "items[0].diagnosisPointer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := Claim("tenant-001", req)
			if err == nil {
				t.Fatal("expected error")
			}
			fields := violationFields(t, err)
			requireField(t, fields, tt.field)

			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				var verr *ValidationError
				errors.As(err, &verr)
				found := false
				for _, v := range verr.Violations {
					if strings.Contains(v.Message, tt.message) {
						found = true
					}
				}
				if !found {
					t.Errorf("expected message containing %q, got %+v", tt.message, verr.Violations)
				}
			}
		})
	}
}

func TestClaimAccumulatesViolations(t *testing.T) {
	req := validRequest()
	req.MemberID = ""
	req.BillingNPI = ""
	req.Items[0].Quantity = -2

	_, err := Claim("tenant-001", req)
	if err == nil {
		t.Fatal("expected error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Violations) != 3 {
		t.Errorf("expected all 3 violations reported, got %d: %+v", len(verr.Violations), verr.Violations)
	}
	if !strings.Contains(verr.Error(), "3 violations") {
		t.Errorf("error text should summarize the count, got %q", verr.Error())
	}
}

func TestValidationErrorSingleMessage(t *testing.T) {
	req := validRequest()
	req.ClaimID = ""

	_, err := Claim("tenant-001", req)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "claimId") {
		t.Errorf("single-violation error should name the field, got %q", got)
	}
}
