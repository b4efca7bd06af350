package model

import "time"

// ValidationResult is the final verdict for one (user message, bot answer) pair.
// The orchestrator always produces exactly one, even when validation itself
// fails (the fail-closed result).
type ValidationResult struct {
	RiskLevel          RiskLevel         `json:"risk_level"`
	RequiresEscalation bool              `json:"requires_escalation"`
	EscalationTrigger  EscalationTrigger `json:"escalation_trigger,omitempty"`
	Message            string            `json:"validation_message"` // Human-readable summary of the verdict
	Rule               string            `json:"rule,omitempty"`     // Name of the rule that decided
	ConfidenceScore    float64           `json:"confidence_score"`

	EmergencyKeywords []string `json:"emergency_keywords,omitempty"` // Emergency terms found in query or response
	HighRiskKeywords  []string `json:"high_risk_keywords,omitempty"` // High-risk terms and condition names found

	// Populated by the dangerous-combination rule and by the semantic stage.
	VerifiedClaims     []string `json:"verified_claims,omitempty"`
	ContradictedClaims []string `json:"contradicted_claims,omitempty"`
	SourcesUsed        []string `json:"sources_used,omitempty"`

	// Present only when the semantic stage ran to completion.
	AccuracyScore      *float64        `json:"accuracy_score,omitempty"`
	SemanticConfidence *float64        `json:"semantic_confidence,omitempty"`
	Semantic           *SemanticReport `json:"semantic,omitempty"`

	ValidatedAt time.Time `json:"validated_at"`
}

// SemanticReport aggregates claim extraction and fact checking for one answer
type SemanticReport struct {
	Claims             []ExtractedClaim  `json:"claims"`
	Checks             []FactCheckResult `json:"fact_checks"`
	Tally              ClaimTally        `json:"quality_metrics"`
	Scores             Scores            `json:"scores"`
	RiskLevel          RiskLevel         `json:"risk_level"`
	RequiresEscalation bool              `json:"requires_escalation"`
	Triggers           []string          `json:"triggers,omitempty"`     // Human-readable reasons behind the risk level
	SourcesUsed        []string          `json:"sources_used,omitempty"` // Distinct source names behind verified matches
	Signals            []Signal          `json:"signals,omitempty"`
	UsedFallback       bool              `json:"used_fallback_extraction"` // Keyword path instead of LLM
	DurationMS         int64             `json:"validation_duration_ms"`
}

// ClaimTally counts claims by check outcome
type ClaimTally struct {
	Total        int `json:"total_claims"`
	Verified     int `json:"verified_claims"`
	Contradicted int `json:"contradicted_claims"`
	Concerning   int `json:"concerning_claims"`
	Unverifiable int `json:"unverifiable_claims"`
}

// Scores is the transparent aggregate scoring breakdown
type Scores struct {
	Accuracy        float64 `json:"accuracy"`            // verified / total claims
	Appropriateness float64 `json:"appropriateness"`     // penalized by contradictions
	Completeness    float64 `json:"completeness"`        // testable coverage of the answer
	Confidence      float64 `json:"semantic_confidence"` // support for the answer as a whole
}

// Signal is a diagnostic marker with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formulas and inputs, so every number is explainable
}

// SignalType classifies the diagnostic signal
type SignalType string

const (
	SignalContradictions SignalType = "contradictions"    // Claims conflicting with sourced facts
	SignalConcerning     SignalType = "concerning_claims" // Warning/emergency claims forced to review
	SignalUnverifiable   SignalType = "unverifiable_bulk" // Majority of claims untestable
	SignalNoClaims       SignalType = "no_claims"         // Nothing testable extracted
	SignalAccuracy       SignalType = "accuracy"          // Verified-claim ratio
)

// SignalSeverity indicates how much weight a signal carries
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// VerifiedClaimTexts returns the texts of claims that checked out
func (r *SemanticReport) VerifiedClaimTexts() []string {
	var texts []string
	for _, c := range r.Checks {
		if c.Status == CheckVerified {
			texts = append(texts, c.Claim.Text)
		}
	}
	return texts
}

// ContradictedClaimTexts returns the texts of claims that conflicted with facts
func (r *SemanticReport) ContradictedClaimTexts() []string {
	var texts []string
	for _, c := range r.Checks {
		if c.Status == CheckContradicted {
			texts = append(texts, c.Claim.Text)
		}
	}
	return texts
}
