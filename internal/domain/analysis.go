package domain

import (
	"time"
)

// DecisionMode is the claim-disposition recommendation.
type DecisionMode string

const (
	DecisionAutoApproveFast DecisionMode = "auto_approve_fast"
	DecisionAutoApprove     DecisionMode = "auto_approve"
	DecisionInformational   DecisionMode = "informational"
	DecisionRecommendation  DecisionMode = "recommendation"
	DecisionSoftHold        DecisionMode = "soft_hold"
)

// AnalysisResult is the complete verdict for one claim analysis.
// Assembled once by the orchestrator and never mutated; a re-analysis
// produces a new result.
type AnalysisResult struct {
	JobID    string `json:"jobId"`
	ClaimID  string `json:"claimId"`
	TenantID string `json:"tenantId"`

	FraudScore   float64      `json:"fraudScore"`
	DecisionMode DecisionMode `json:"decisionMode"`

	// RuleHits in evaluator-registration order.
	RuleHits []RuleHit `json:"ruleHits"`

	// Categorized flag lists for quick inspection.
	NcciFlags     []string `json:"ncciFlags"`
	CoverageFlags []string `json:"coverageFlags"`
	ProviderFlags []string `json:"providerFlags"`

	// ROIEstimate is the estimated recoverable amount, nil when no
	// quantifiable recovery applies.
	ROIEstimate *float64 `json:"roiEstimate"`

	Timestamp time.Time `json:"timestamp"`

	Metadata AnalysisMetadata `json:"metadata"`
}

// AnalysisMetadata records how the analysis ran, including degradation.
type AnalysisMetadata struct {
	NormalizeMs int64 `json:"normalizeMs"`
	ResolveMs   int64 `json:"resolveMs"`
	EvaluateMs  int64 `json:"evaluateMs"`
	TotalMs     int64 `json:"totalMs"`

	EvaluatorsRun      int      `json:"evaluatorsRun"`
	EvaluatorsSkipped  []string `json:"evaluatorsSkipped,omitempty"`
	EvaluatorsDegraded []string `json:"evaluatorsDegraded,omitempty"`
	ReferenceMissing   []string `json:"referenceMissing,omitempty"`

	// Resubmissions counts prior analyses of the same claim id seen
	// within the tracking window, when a cache is available.
	Resubmissions int64 `json:"resubmissions,omitempty"`

	EngineVersion string `json:"engineVersion"`
}

// FlagsByType groups hit flags into the categorized lists.
// Financial and modifier hits appear only in RuleHits.
func FlagsByType(hits []RuleHit) (ncci, coverage, provider []string) {
	ncci = []string{}
	coverage = []string{}
	provider = []string{}
	for _, h := range hits {
		switch h.Type {
		case RuleTypeNcci:
			ncci = append(ncci, h.Flag)
		case RuleTypeCoverage:
			coverage = append(coverage, h.Flag)
		case RuleTypeProvider:
			provider = append(provider, h.Flag)
		}
	}
	return ncci, coverage, provider
}

// HasSeverity reports whether any hit is at least the given severity.
func HasSeverity(hits []RuleHit, min Severity) bool {
	for _, h := range hits {
		if h.Severity.AtLeast(min) {
			return true
		}
	}
	return false
}
