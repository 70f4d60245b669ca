// Package normalize validates raw claim submissions and converts them
// into the internal claim model.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

// Violation is one failed validation on a submission field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in a submission, not
// just the first: submitters need the complete list.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("invalid claim: %s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("invalid claim: %d violations", len(e.Violations))
}

func (e *ValidationError) add(field, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: message})
}

// Claim builds a normalized claim from a raw request. It is side-effect
// free; on failure it returns a ValidationError enumerating every
// violated field.
func Claim(tenantID string, req *domain.ClaimRequest) (*domain.Claim, error) {
	verr := &ValidationError{}

	claimID := strings.TrimSpace(req.ClaimID)
	if claimID == "" {
		verr.add("claimId", "is required")
	}

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		verr.add("memberId", "is required")
	}

	billingNPI := strings.TrimSpace(req.BillingNPI)
	if billingNPI == "" {
		verr.add("billingNpi", "is required")
	}

	claimType := strings.ToLower(strings.TrimSpace(req.ClaimType))
	switch claimType {
	case domain.ClaimTypeProfessional, domain.ClaimTypeInstitutional:
	case "":
		verr.add("claimType", "is required")
	default:
		verr.add("claimType", fmt.Sprintf("must be %q or %q", domain.ClaimTypeProfessional, domain.ClaimTypeInstitutional))
	}

	var dos time.Time
	if strings.TrimSpace(req.DateOfService) == "" {
		verr.add("dateOfService", "is required")
	} else {
		var err error
		dos, err = time.Parse("2006-01-02", strings.TrimSpace(req.DateOfService))
		if err != nil {
			verr.add("dateOfService", "must be a date in YYYY-MM-DD format")
		}
	}

	diagnoses := make([]string, 0, len(req.DiagnosisCodes))
	for i, dx := range req.DiagnosisCodes {
		code := canonCode(dx)
		if code == "" {
			verr.add(fmt.Sprintf("diagnosisCodes[%d]", i), "must not be empty")
			continue
		}
		diagnoses = append(diagnoses, code)
	}

	if len(req.Items) == 0 {
		verr.add("items", "at least one line item is required")
	}

	lines := make([]domain.ClaimLine, 0, len(req.Items))
	for i, item := range req.Items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

		code := canonCode(item.ProcedureCode)
		if code == "" {
			verr.add(field("procedureCode"), "is required")
		}
		if item.Quantity < 0 {
			verr.add(field("quantity"), "must be non-negative")
		}
		if item.LineAmount < 0 {
			verr.add(field("lineAmount"), "must be non-negative")
		}

		line := domain.ClaimLine{
			Number:        i + 1,
			ProcedureCode: code,
			Quantity:      item.Quantity,
			Amount:        item.LineAmount,
			RevenueCode:   canonCode(item.RevenueCode),
		}

		for _, m := range item.Modifiers {
			if mod := canonCode(m); mod != "" {
				line.Modifiers = append(line.Modifiers, mod)
			}
		}

		// A diagnosis pointer is a 1-based index into the claim's
		// diagnosis list.
		if item.DiagnosisPointer != nil {
			ptr := *item.DiagnosisPointer
			if ptr < 1 || ptr > len(diagnoses) {
				verr.add(field("diagnosisPointer"), fmt.Sprintf("must reference a diagnosis between 1 and %d", len(diagnoses)))
			} else {
				line.DiagnosisCode = diagnoses[ptr-1]
			}
		}

		lines = append(lines, line)
	}

	if len(verr.Violations) > 0 {
		return nil, verr
	}

	return &domain.Claim{
		ClaimID:        claimID,
		TenantID:       tenantID,
		MemberID:       memberID,
		BillingNPI:     billingNPI,
		RenderingNPI:   strings.TrimSpace(req.RenderingNPI),
		FacilityNPI:    strings.TrimSpace(req.FacilityNPI),
		ClaimType:      claimType,
		DateOfService:  dos,
		DiagnosisCodes: diagnoses,
		Lines:          lines,
		SubmittedAt:    time.Now().UTC(),
	}, nil
}

// canonCode trims and uppercases a billing code.
func canonCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
