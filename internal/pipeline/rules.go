package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/prahari-health/prahari/internal/model"
)

// Rule is one stage of the deterministic ladder. Evaluate returns nil when
// the rule has nothing to say; the first non-nil result decides.
type Rule struct {
	Name     string
	Evaluate func(ctx context.Context, ec *evalContext) (*model.ValidationResult, error)
}

// evalContext carries lowercased inputs and the keyword matches every rule
// reads. Scanning happens once, up front, so each verdict reports the full
// keyword picture no matter which rule decided.
type evalContext struct {
	query      string
	response   string
	confidence float64
	keywords   *model.KeywordConfig
	thresholds model.ThresholdConfig

	emergencyInQuery    []string
	emergencyInResponse []string
	highRisk            []string
	conditions          []string
}

func newEvalContext(input Input, confidence float64, kw *model.KeywordConfig, th model.ThresholdConfig) *evalContext {
	query := strings.ToLower(input.UserQuery)
	response := strings.ToLower(input.BotResponse)
	return &evalContext{
		query:      query,
		response:   response,
		confidence: confidence,
		keywords:   kw,
		thresholds: th,

		emergencyInQuery:    findKeywords(query, kw.Emergency),
		emergencyInResponse: findKeywords(response, kw.Emergency),
		highRisk:            findKeywords(query, kw.HighRisk),
		conditions:          findKeywords(query, kw.Conditions),
	}
}

// emergencyKeywords returns the union of query and response matches,
// query matches first.
func (ec *evalContext) emergencyKeywords() []string {
	seen := make(map[string]bool, len(ec.emergencyInQuery))
	var all []string
	for _, kw := range ec.emergencyInQuery {
		seen[kw] = true
		all = append(all, kw)
	}
	for _, kw := range ec.emergencyInResponse {
		if !seen[kw] {
			seen[kw] = true
			all = append(all, kw)
		}
	}
	return all
}

// highRiskKeywords returns high-risk terms and condition names together,
// the shape the audit trail and escalation records expect.
func (ec *evalContext) highRiskKeywords() []string {
	return append(append([]string{}, ec.highRisk...), ec.conditions...)
}

// result builds a verdict carrying the shared keyword fields
func (ec *evalContext) result(risk model.RiskLevel, escalate bool, trigger model.EscalationTrigger, message string) *model.ValidationResult {
	return &model.ValidationResult{
		RiskLevel:          risk,
		RequiresEscalation: escalate,
		EscalationTrigger:  trigger,
		Message:            message,
		ConfidenceScore:    ec.confidence,
		EmergencyKeywords:  ec.emergencyKeywords(),
		HighRiskKeywords:   ec.highRiskKeywords(),
	}
}

// defaultLadder is the deterministic rule order. The semantic stage is not
// a ladder rule: it refines the ladder's verdict afterwards (see
// Orchestrator.refine).
func defaultLadder() []Rule {
	return []Rule{
		ruleEmergencyKeywords(),
		ruleDangerousCombination(),
		ruleRiskHeuristics(),
	}
}

// ruleEmergencyKeywords handles anything that reads as an emergency. It
// always escalates at confidence 1.0 and nothing runs after it.
func ruleEmergencyKeywords() Rule {
	return Rule{
		Name: "emergency_keywords",
		Evaluate: func(_ context.Context, ec *evalContext) (*model.ValidationResult, error) {
			if len(ec.emergencyInQuery) == 0 && len(ec.emergencyInResponse) == 0 {
				return nil, nil
			}

			risk := model.RiskCritical
			message := fmt.Sprintf("Emergency situation detected: %s", joinFirst(ec.emergencyKeywords(), 3))

			switch {
			case len(ec.emergencyInQuery) == 0:
				// The response raises an emergency the user never mentioned
				message = fmt.Sprintf("Unsolicited emergency claim in response: %s", joinFirst(ec.emergencyInResponse, 3))

			case containsAny(ec.response, ec.keywords.DangerPatterns):
				message = fmt.Sprintf("Emergency dismissed by response: %s", joinFirst(ec.emergencyInQuery, 3))

			case !containsAny(ec.response, ec.keywords.AdequateResponse):
				risk = model.RiskHigh
				message = fmt.Sprintf("Emergency handled inadequately: %s", joinFirst(ec.emergencyInQuery, 3))
			}

			result := ec.result(risk, true, model.TriggerEmergencyKeywords, message)
			result.ConfidenceScore = 1.0
			return result, nil
		},
	}
}

// ruleDangerousCombination checks the medication-population table. A hit is
// high risk with the pairing recorded as a contradicted claim.
func ruleDangerousCombination() Rule {
	return Rule{
		Name: "dangerous_combination",
		Evaluate: func(_ context.Context, ec *evalContext) (*model.ValidationResult, error) {
			var medications []string
			var pairings []string
			for _, combo := range ec.keywords.Combinations {
				if !strings.Contains(ec.response, strings.ToLower(combo.Medication)) {
					continue
				}
				for _, context := range combo.Contexts {
					if strings.Contains(ec.query, strings.ToLower(context)) {
						medications = append(medications, combo.Medication)
						pairings = append(pairings, fmt.Sprintf("%s recommended where %q applies: %s", combo.Medication, context, combo.Reason))
						break
					}
				}
			}
			if len(pairings) == 0 {
				return nil, nil
			}

			result := ec.result(model.RiskHigh, true, model.TriggerDangerousCombination,
				fmt.Sprintf("Dangerous medication combination detected: %s", strings.Join(medications, ", ")))
			result.ContradictedClaims = pairings
			return result, nil
		},
	}
}

// ruleRiskHeuristics grades everything the first two rules passed over,
// combining keyword signals with the baseline confidence. It always
// decides, so it must stay last.
func ruleRiskHeuristics() Rule {
	return Rule{
		Name: "risk_heuristics",
		Evaluate: func(_ context.Context, ec *evalContext) (*model.ValidationResult, error) {
			hasHighRisk := len(ec.highRisk) > 0
			hasCondition := len(ec.conditions) > 0
			th := ec.thresholds

			switch {
			case hasHighRisk && ec.confidence < th.HighRiskConfidence:
				return ec.result(model.RiskHigh, true, model.TriggerHighRiskLowConf,
					fmt.Sprintf("High-risk medical topic with low confidence: %s", joinFirst(ec.highRisk, 2))), nil

			case (hasHighRisk || hasCondition) && ec.confidence >= th.HighRiskConfidence:
				if matched := findKeywords(ec.response, ec.keywords.DangerousAdvice); len(matched) > 0 {
					return ec.result(model.RiskHigh, true, model.TriggerDangerousAdvice,
						fmt.Sprintf("Dangerous advice pattern detected: %s", matched[0])), nil
				}
				if containsAny(ec.response, ec.keywords.GoodPractice) {
					return ec.result(model.RiskLow, false, "", "Medical topic with sound guidance"), nil
				}
				return ec.result(model.RiskMedium, false, "", "Medical condition mentioned - response monitored"), nil

			case hasCondition && ec.confidence < th.MediumConfidence:
				return ec.result(model.RiskMedium, true, model.TriggerLowConfCondition,
					"Medical condition mentioned with low confidence"), nil

			case !hasHighRisk && !hasCondition && ec.confidence < th.VeryLowConfidence:
				return ec.result(model.RiskHigh, true, model.TriggerVeryLowConfidence,
					"Very low confidence - requires expert review"), nil
			}

			return ec.result(model.RiskLow, false, "", "Response is appropriate"), nil
		},
	}
}

// findKeywords returns the list entries present in text as substrings.
// Matching is case-insensitive; text arrives lowercased.
func findKeywords(text string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// joinFirst joins up to n entries, matching the report style of the
// validation messages.
func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}
