package domain

import (
	"time"
)

// Claim type constants.
const (
	ClaimTypeProfessional  = "professional"
	ClaimTypeInstitutional = "institutional"
)

// Claim is a normalized, validated claim submission.
// Immutable once produced by the normalizer; it exists only for the
// duration of one analysis.
type Claim struct {
	// Core identifiers
	ClaimID  string `json:"claimId"`
	TenantID string `json:"tenantId"`

	// Member and providers
	MemberID     string `json:"memberId"`
	BillingNPI   string `json:"billingNpi"`
	RenderingNPI string `json:"renderingNpi,omitempty"`
	FacilityNPI  string `json:"facilityNpi,omitempty"`

	// Claim details
	ClaimType      string    `json:"claimType"`
	DateOfService  time.Time `json:"dateOfService"`
	DiagnosisCodes []string  `json:"diagnosisCodes"`

	Lines []ClaimLine `json:"lines"`

	SubmittedAt time.Time `json:"submittedAt"`
}

// ClaimLine is a single service line on a claim.
// Owned exclusively by its parent claim.
type ClaimLine struct {
	// Line number within the claim, 1-based
	Number int `json:"number"`

	ProcedureCode string   `json:"procedureCode"`
	DiagnosisCode string   `json:"diagnosisCode,omitempty"`
	Modifiers     []string `json:"modifiers,omitempty"`
	Quantity      float64  `json:"quantity"`
	Amount        float64  `json:"amount"`
	RevenueCode   string   `json:"revenueCode,omitempty"`
}

// TotalAmount returns the sum of all line amounts.
func (c *Claim) TotalAmount() float64 {
	var total float64
	for _, l := range c.Lines {
		total += l.Amount
	}
	return total
}

// ProcedureCodes returns the distinct procedure codes on the claim,
// in line order.
func (c *Claim) ProcedureCodes() []string {
	seen := make(map[string]bool, len(c.Lines))
	codes := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		if !seen[l.ProcedureCode] {
			seen[l.ProcedureCode] = true
			codes = append(codes, l.ProcedureCode)
		}
	}
	return codes
}

// ProviderNPIs returns the distinct provider NPIs referenced by the claim.
func (c *Claim) ProviderNPIs() []string {
	seen := make(map[string]bool, 3)
	npis := make([]string, 0, 3)
	for _, npi := range []string{c.BillingNPI, c.RenderingNPI, c.FacilityNPI} {
		if npi != "" && !seen[npi] {
			seen[npi] = true
			npis = append(npis, npi)
		}
	}
	return npis
}

// HasModifier reports whether the line carries the given modifier.
func (l *ClaimLine) HasModifier(mod string) bool {
	for _, m := range l.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// ClaimRequest is the API request payload for claim analysis.
type ClaimRequest struct {
	ClaimID        string        `json:"claimId"`
	MemberID       string        `json:"memberId"`
	BillingNPI     string        `json:"billingNpi"`
	RenderingNPI   string        `json:"renderingNpi,omitempty"`
	FacilityNPI    string        `json:"facilityNpi,omitempty"`
	ClaimType      string        `json:"claimType"`
	DateOfService  string        `json:"dateOfService"` // YYYY-MM-DD
	DiagnosisCodes []string      `json:"diagnosisCodes"`
	Items          []ItemRequest `json:"items"`
}

// ItemRequest is one line item in a ClaimRequest.
type ItemRequest struct {
	ProcedureCode    string   `json:"procedureCode"`
	DiagnosisPointer *int     `json:"diagnosisPointer,omitempty"` // 1-based index into DiagnosisCodes
	Modifiers        []string `json:"modifiers,omitempty"`
	Quantity         float64  `json:"quantity"`
	LineAmount       float64  `json:"lineAmount"`
	RevenueCode      string   `json:"revenueCode,omitempty"`
}
