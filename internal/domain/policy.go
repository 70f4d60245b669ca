package domain

// PolicyConfig defines a tenant-configurable screening policy.
// Policies are CEL expressions over claim fields, evaluated alongside
// the fixed builtin evaluators by the policy evaluator. They cannot be
// critical, so a policy can raise a claim for review but never force a
// hold on its own.
type PolicyConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is a CEL expression returning bool, int, or double.
	Expression string `json:"expression"`

	// Bands map the expression's numeric result to a hit severity.
	Bands []PolicyBand `json:"bands"`

	// Flag is the short code attached to hits from this policy.
	Flag string `json:"flag"`

	// Weight overrides the severity weight when non-zero.
	Weight float64 `json:"weight"`

	// Whether the policy is active
	Enabled bool `json:"enabled"`
}

// PolicyBand maps a score range to a severity. Ranges are lower
// inclusive, upper exclusive; a nil bound is open. A band with empty
// severity emits no hit (a pass band).
type PolicyBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	Reason     string   `json:"reason"`
}
