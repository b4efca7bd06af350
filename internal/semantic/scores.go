package semantic

import (
	"fmt"
	"math"

	"github.com/prahari-health/prahari/internal/model"
	"github.com/samber/lo"
)

// Score baselines matching the report defaults when nothing was checkable.
const (
	baselineScore         = 0.5
	noClaimsCompleteness  = 0.3
	cleanAppropriateness  = 0.8
	contraAppropriateBase = 0.7
)

// applyNoClaims fills the report for an answer with nothing testable.
// Low completeness, neutral everything else, no escalation signal.
func (v *Validator) applyNoClaims(report *model.SemanticReport) {
	report.Checks = []model.FactCheckResult{}
	report.Scores = model.Scores{
		Accuracy:        baselineScore,
		Appropriateness: baselineScore,
		Completeness:    noClaimsCompleteness,
		Confidence:      baselineScore,
	}
	report.Signals = []model.Signal{{
		Type:        model.SignalNoClaims,
		Severity:    model.SeverityWarning,
		Description: "No testable claims extracted from the response",
		Data: map[string]interface{}{
			"claims":       0,
			"completeness": noClaimsCompleteness,
		},
	}}
}

// buildTally counts checks by outcome
func buildTally(checks []model.FactCheckResult) model.ClaimTally {
	return model.ClaimTally{
		Total:        len(checks),
		Verified:     countStatus(checks, model.CheckVerified),
		Contradicted: countStatus(checks, model.CheckContradicted),
		Concerning:   countStatus(checks, model.CheckConcerning),
		Unverifiable: countStatus(checks, model.CheckUnverifiable),
	}
}

func countStatus(checks []model.FactCheckResult, status model.FactCheckStatus) int {
	return lo.CountBy(checks, func(c model.FactCheckResult) bool {
		return c.Status == status
	})
}

// buildScores computes the aggregate scores. Every formula also appears in
// a signal so the numbers stay explainable.
func buildScores(claims []model.ExtractedClaim, checks []model.FactCheckResult, tally model.ClaimTally) model.Scores {
	total := float64(tally.Total)

	accuracy := float64(tally.Verified) / total

	appropriateness := cleanAppropriateness
	if tally.Contradicted > 0 {
		appropriateness = math.Max(0, contraAppropriateBase-float64(tally.Contradicted)/total*0.5)
	}

	testable := lo.CountBy(claims, func(c model.ExtractedClaim) bool { return c.Testable })
	completeness := float64(testable) / total

	// Extraction confidence weighted by how well each claim checked out
	confidence := lo.SumBy(checks, func(c model.FactCheckResult) float64 {
		return c.Claim.Confidence * c.Confidence
	}) / total

	return model.Scores{
		Accuracy:        accuracy,
		Appropriateness: appropriateness,
		Completeness:    completeness,
		Confidence:      confidence,
	}
}

// assessRisk grades the tally. Escalation mirrors risk at high or above;
// triggers carry the per-claim reasons.
func (v *Validator) assessRisk(tally model.ClaimTally, checks []model.FactCheckResult) (model.RiskLevel, bool, []string) {
	var triggers []string
	for _, c := range checks {
		switch c.Status {
		case model.CheckContradicted:
			triggers = append(triggers, "Contradicted claim: "+c.Claim.Text)
		case model.CheckConcerning:
			triggers = append(triggers, "Concerning claim: "+c.Claim.Text)
		}
	}

	risk := model.RiskLow
	switch {
	case tally.Contradicted > 0 || tally.Concerning >= v.thresholds.ConcerningClaims:
		risk = model.RiskHigh
	case tally.Concerning > 0 || float64(tally.Unverifiable) > float64(tally.Total)*v.thresholds.UnverifiableShare:
		risk = model.RiskMedium
	}

	return risk, risk.AtLeast(model.RiskHigh), triggers
}

// buildSignals emits the diagnostic signals for a checked answer
func (v *Validator) buildSignals(tally model.ClaimTally, scores model.Scores) []model.Signal {
	var signals []model.Signal
	total := tally.Total

	accuracySeverity := model.SeverityInfo
	if scores.Accuracy < v.thresholds.LowAccuracy {
		accuracySeverity = model.SeverityCritical
	} else if scores.Accuracy < v.thresholds.HighAccuracy {
		accuracySeverity = model.SeverityWarning
	}
	signals = append(signals, model.Signal{
		Type:        model.SignalAccuracy,
		Severity:    accuracySeverity,
		Description: fmt.Sprintf("Verified %d of %d claims (accuracy %.2f)", tally.Verified, total, scores.Accuracy),
		Data: map[string]interface{}{
			"verified": tally.Verified,
			"total":    total,
			"accuracy": scores.Accuracy,
			"formula":  "verified_claims / total_claims",
		},
	})

	if tally.Contradicted > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalContradictions,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("%d of %d claims conflict with sourced facts", tally.Contradicted, total),
			Data: map[string]interface{}{
				"contradicted":    tally.Contradicted,
				"total":           total,
				"appropriateness": scores.Appropriateness,
				"formula":         "max(0, 0.7 - contradicted/total * 0.5)",
			},
		})
	}

	if tally.Concerning > 0 {
		severity := model.SeverityWarning
		if tally.Concerning >= v.thresholds.ConcerningClaims {
			severity = model.SeverityCritical
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalConcerning,
			Severity:    severity,
			Description: fmt.Sprintf("%d claims need expert review", tally.Concerning),
			Data: map[string]interface{}{
				"concerning": tally.Concerning,
				"threshold":  v.thresholds.ConcerningClaims,
			},
		})
	}

	if float64(tally.Unverifiable) > float64(total)*v.thresholds.UnverifiableShare {
		signals = append(signals, model.Signal{
			Type:        model.SignalUnverifiable,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d claims could not be tested", tally.Unverifiable, total),
			Data: map[string]interface{}{
				"unverifiable": tally.Unverifiable,
				"total":        total,
				"share":        v.thresholds.UnverifiableShare,
				"formula":      "unverifiable_claims > total_claims * share",
			},
		})
	}

	return signals
}
