package domain

// Severity grades how serious a rule hit is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// RuleType categorizes rule hits for the result's flag lists.
type RuleType string

const (
	RuleTypeNcci      RuleType = "ncci"
	RuleTypeCoverage  RuleType = "coverage"
	RuleTypeProvider  RuleType = "provider"
	RuleTypeFinancial RuleType = "financial"
	RuleTypeModifier  RuleType = "modifier"
)

// RuleHit is one evaluator finding against a claim.
// Immutable once produced; identity is (RuleID, ClaimID).
type RuleHit struct {
	RuleID      string   `json:"ruleId"`
	ClaimID     string   `json:"claimId"`
	Type        RuleType `json:"ruleType"`
	Severity    Severity `json:"severity"`
	Weight      float64  `json:"weight"`
	Description string   `json:"description"`

	// Flag is a short stable code for the finding, used in the
	// result's categorized flag lists.
	Flag string `json:"flag"`

	AffectedCodes []string `json:"affectedCodes,omitempty"`
	Citation      string   `json:"citation,omitempty"`
}
