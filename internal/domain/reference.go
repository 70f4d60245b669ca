package domain

import (
	"time"
)

// RefType identifies one class of reference data the resolver fetches.
type RefType string

const (
	RefProviders   RefType = "providers"
	RefEligibility RefType = "eligibility"
	RefNcciEdits   RefType = "ncci_edits"
	RefMueLimits   RefType = "mue_limits"
	RefBenefits    RefType = "benefit_limits"
	RefPriorAuth   RefType = "prior_auth"
	RefHistory     RefType = "service_history"
)

// AllRefTypes lists every reference type in resolution order.
func AllRefTypes() []RefType {
	return []RefType{
		RefProviders, RefEligibility, RefNcciEdits, RefMueLimits,
		RefBenefits, RefPriorAuth, RefHistory,
	}
}

// ProviderRecord describes a provider from the registry.
// Sourced externally; read-only to the engine.
type ProviderRecord struct {
	NPI              string     `json:"npi"`
	Name             string     `json:"name,omitempty"`
	Taxonomy         string     `json:"taxonomy,omitempty"`
	Excluded         bool       `json:"excluded"`
	ExclusionDate    *time.Time `json:"exclusionDate,omitempty"`
	Watchlist        bool       `json:"watchlist"`
	AvgMonthlyClaims float64    `json:"avgMonthlyClaims,omitempty"`
}

// ExcludedAsOf reports whether the provider was OIG-excluded on the
// given date of service.
func (p *ProviderRecord) ExcludedAsOf(dos time.Time) bool {
	if !p.Excluded {
		return false
	}
	// Missing exclusion date means the exclusion predates our data.
	return p.ExclusionDate == nil || !p.ExclusionDate.After(dos)
}

// Eligibility status constants.
const (
	CoverageActive     = "active"
	CoverageTerminated = "terminated"
	CoverageSuspended  = "suspended"
)

// EligibilityRecord describes a member's coverage.
type EligibilityRecord struct {
	MemberID        string     `json:"memberId"`
	Status          string     `json:"status"`
	PlanID          string     `json:"planId"`
	EffectiveDate   time.Time  `json:"effectiveDate"`
	TerminationDate *time.Time `json:"terminationDate,omitempty"`
	PCPNPI          string     `json:"pcpNpi,omitempty"`
}

// CoversDate reports whether coverage was active on the given date.
func (e *EligibilityRecord) CoversDate(dos time.Time) bool {
	if e.Status != CoverageActive {
		return false
	}
	if dos.Before(e.EffectiveDate) {
		return false
	}
	if e.TerminationDate != nil && dos.After(*e.TerminationDate) {
		return false
	}
	return true
}

// NcciEditPair is one procedure-to-procedure edit: the two codes should
// not be billed together unless an override modifier is allowed and present.
type NcciEditPair struct {
	Column1Code     string    `json:"column1Code"`
	Column2Code     string    `json:"column2Code"`
	ModifierAllowed bool      `json:"modifierAllowed"`
	EffectiveDate   time.Time `json:"effectiveDate"`
	Citation        string    `json:"citation,omitempty"`
}

// MueLimit is a per-code per-day maximum unit count.
type MueLimit struct {
	ProcedureCode string    `json:"procedureCode"`
	MaxUnits      float64   `json:"maxUnits"`
	EffectiveDate time.Time `json:"effectiveDate"`
	Rationale     string    `json:"rationale,omitempty"`
}

// BenefitLimit caps utilization of a procedure under a plan per period.
type BenefitLimit struct {
	PlanID        string  `json:"planId"`
	ProcedureCode string  `json:"procedureCode"`
	MaxUnits      float64 `json:"maxUnits,omitempty"`
	MaxAmount     float64 `json:"maxAmount,omitempty"`
	Period        string  `json:"period"` // "year" or "month"
}

// Prior authorization status constants.
const (
	AuthApproved = "approved"
	AuthDenied   = "denied"
	AuthPending  = "pending"
)

// PriorAuthorization records an authorization for member+procedure.
type PriorAuthorization struct {
	AuthID         string     `json:"authId"`
	MemberID       string     `json:"memberId"`
	ProcedureCode  string     `json:"procedureCode"`
	Status         string     `json:"status"`
	ApprovedUnits  float64    `json:"approvedUnits,omitempty"`
	ApprovedAmount float64    `json:"approvedAmount,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
}

// Covers reports whether the authorization covers the given service:
// approved, unexpired as of the date of service, and with sufficient
// approved units and amount.
func (a *PriorAuthorization) Covers(dos time.Time, units, amount float64) bool {
	if a.Status != AuthApproved {
		return false
	}
	if a.ExpirationDate != nil && a.ExpirationDate.Before(dos) {
		return false
	}
	if a.ApprovedUnits > 0 && units > a.ApprovedUnits {
		return false
	}
	if a.ApprovedAmount > 0 && amount > a.ApprovedAmount {
		return false
	}
	return true
}

// ServiceHistoryEntry is one prior occurrence of member+procedure+date.
// Append-only from the engine's perspective.
type ServiceHistoryEntry struct {
	MemberID      string    `json:"memberId"`
	ProcedureCode string    `json:"procedureCode"`
	DateOfService time.Time `json:"dateOfService"`
	ProviderNPI   string    `json:"providerNpi"`
	Units         float64   `json:"units"`
	Amount        float64   `json:"amount"`
	ClaimID       string    `json:"claimId,omitempty"`
}

// ReferenceSnapshot is the point-in-time reference data for one analysis.
// Built once by the resolver and treated as immutable by every evaluator.
//
// A reference type that could not be resolved at all is listed in Missing;
// evaluators that depend on it must abstain. A type that resolved but
// returned no records is simply empty - "not found" is distinct from
// "unavailable".
type ReferenceSnapshot struct {
	Providers     map[string]*ProviderRecord `json:"providers"`
	Eligibility   *EligibilityRecord         `json:"eligibility,omitempty"`
	NcciPairs     []NcciEditPair             `json:"ncciPairs,omitempty"`
	MueLimits     map[string]*MueLimit       `json:"mueLimits,omitempty"`
	BenefitLimits map[string]*BenefitLimit   `json:"benefitLimits,omitempty"` // keyed by procedure code
	PriorAuths    []PriorAuthorization       `json:"priorAuths,omitempty"`
	History       []ServiceHistoryEntry      `json:"history,omitempty"`

	// Missing lists reference types that degraded during resolution.
	Missing map[RefType]bool `json:"missing,omitempty"`

	ResolvedAt time.Time `json:"resolvedAt"`
}

// Degraded reports whether the given reference type failed to resolve.
func (s *ReferenceSnapshot) Degraded(t RefType) bool {
	return s.Missing[t]
}

// MissingTypes returns the degraded reference types in resolution order.
func (s *ReferenceSnapshot) MissingTypes() []string {
	var out []string
	for _, t := range AllRefTypes() {
		if s.Missing[t] {
			out = append(out, string(t))
		}
	}
	return out
}
