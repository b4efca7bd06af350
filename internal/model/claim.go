package model

import "strings"

// ExtractedClaim is a single testable statement pulled out of an LLM answer
type ExtractedClaim struct {
	Text       string    `json:"text"`              // The claim text, usually one sentence
	Type       ClaimType `json:"type"`              // symptom, treatment, prevention, warning, ...
	Testable   bool      `json:"testable"`          // Whether it can be checked against the knowledge base
	Confidence float64   `json:"confidence"`        // Extraction confidence (0-1)
	Keyword    string    `json:"keyword,omitempty"` // Fallback keyword that matched; empty for LLM extraction
}

// ClaimType categorizes the nature of an extracted claim
type ClaimType string

const (
	ClaimSymptom    ClaimType = "symptom"    // Describes what a condition looks or feels like
	ClaimTreatment  ClaimType = "treatment"  // Recommends a medicine or therapy
	ClaimPrevention ClaimType = "prevention" // Advises how to avoid a condition
	ClaimWarning    ClaimType = "warning"    // Flags danger or urges professional care
	ClaimEmergency  ClaimType = "emergency"  // Asserts an emergency situation
	ClaimGeneral    ClaimType = "general"    // Anything else; treated as unverifiable
)

// NormalizeClaimType coerces arbitrary extractor output to a known claim type
func NormalizeClaimType(t string) ClaimType {
	switch ClaimType(strings.ToLower(strings.TrimSpace(t))) {
	case ClaimSymptom:
		return ClaimSymptom
	case ClaimTreatment:
		return ClaimTreatment
	case ClaimPrevention:
		return ClaimPrevention
	case ClaimWarning:
		return ClaimWarning
	case ClaimEmergency:
		return ClaimEmergency
	default:
		return ClaimGeneral
	}
}

// FactCheckStatus is the verdict for one claim checked against the knowledge base
type FactCheckStatus string

const (
	CheckVerified     FactCheckStatus = "verified"     // Matches at least one sourced fact
	CheckContradicted FactCheckStatus = "contradicted" // Conflicts with a sourced fact or contraindication
	CheckConcerning   FactCheckStatus = "concerning"   // Needs human judgement; never auto-verified
	CheckUnverifiable FactCheckStatus = "unverifiable" // Nothing in the knowledge base to test against
)

// FactCheckResult is the outcome of checking one claim
type FactCheckResult struct {
	Claim          ExtractedClaim  `json:"claim"`
	Status         FactCheckStatus `json:"status"`
	Confidence     float64         `json:"confidence"`                 // Mean stored confidence of the matched facts
	MatchedFactIDs []int64         `json:"matched_fact_ids,omitempty"` // Knowledge base rows that matched
	Sources        []string        `json:"sources,omitempty"`          // Source names behind the matches
	Explanation    string          `json:"explanation,omitempty"`      // Human-readable reason for the verdict
}
