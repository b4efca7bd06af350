package model

// RiskLevel classifies how dangerous it would be to deliver an answer unreviewed
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"      // Safe to deliver with a light disclaimer
	RiskMedium   RiskLevel = "medium"   // Deliver with a strong disclaimer
	RiskHigh     RiskLevel = "high"     // Expert review required before trust
	RiskCritical RiskLevel = "critical" // Emergency handling, immediate escalation
)

// rank orders risk levels so verdicts can be compared and never downgraded
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether r is at or above other in severity
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

// MaxRisk returns the more severe of two risk levels
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// ValidRiskLevel reports whether r is one of the four defined levels
func ValidRiskLevel(r RiskLevel) bool {
	return r.rank() >= 0
}

// RiskLevels lists the levels from least to most severe
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// EscalationTrigger identifies which rule forced human review
type EscalationTrigger string

const (
	TriggerEmergencyKeywords    EscalationTrigger = "emergency_keywords"
	TriggerDangerousCombination EscalationTrigger = "dangerous_medication_combination"
	TriggerHighRiskLowConf      EscalationTrigger = "high_risk_low_confidence"
	TriggerDangerousAdvice      EscalationTrigger = "dangerous_advice_pattern"
	TriggerVeryLowConfidence    EscalationTrigger = "very_low_confidence"
	TriggerLowConfCondition     EscalationTrigger = "condition_low_confidence"
	TriggerContradictions       EscalationTrigger = "contradictions_detected"
	TriggerLowAccuracy          EscalationTrigger = "low_accuracy_response"
	TriggerValidationError      EscalationTrigger = "validation_error"
)

// Language is an ISO 639-1 code for one of the assistant's reply languages
type Language string

const (
	LangEnglish   Language = "en"
	LangHindi     Language = "hi"
	LangMarathi   Language = "mr"
	LangGujarati  Language = "gu"
	LangBengali   Language = "bn"
	LangTamil     Language = "ta"
	LangTelugu    Language = "te"
	LangKannada   Language = "kn"
	LangMalayalam Language = "ml"
	LangPunjabi   Language = "pa"
)

// SupportedLanguages lists every language the assistant replies in
func SupportedLanguages() []Language {
	return []Language{
		LangEnglish, LangHindi, LangMarathi, LangGujarati, LangBengali,
		LangTamil, LangTelugu, LangKannada, LangMalayalam, LangPunjabi,
	}
}

// SupportedLanguage reports whether code is one of the reply languages
func SupportedLanguage(code Language) bool {
	for _, l := range SupportedLanguages() {
		if l == code {
			return true
		}
	}
	return false
}
