package semantic

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/prahari-health/prahari/internal/model"
)

type fakeExtractor struct {
	claims []model.ExtractedClaim
	err    error
}

func (f *fakeExtractor) Extract(context.Context, string) ([]model.ExtractedClaim, error) {
	return f.claims, f.err
}

type fakeChecker struct {
	results []model.FactCheckResult
}

func (f *fakeChecker) CheckClaims(context.Context, []model.ExtractedClaim) []model.FactCheckResult {
	return f.results
}

func defaultThresholds() model.ThresholdConfig {
	return model.DefaultConfig().Validation.Thresholds
}

func claim(text string, typ model.ClaimType, confidence float64) model.ExtractedClaim {
	return model.ExtractedClaim{Text: text, Type: typ, Testable: true, Confidence: confidence}
}

func checkResult(c model.ExtractedClaim, status model.FactCheckStatus, confidence float64, sources ...string) model.FactCheckResult {
	return model.FactCheckResult{Claim: c, Status: status, Confidence: confidence, Sources: sources}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestValidateZeroClaims(t *testing.T) {
	v := NewValidator(&fakeExtractor{}, &fakeChecker{}, defaultThresholds(), nil)

	report, err := v.Validate(context.Background(), "hi", "ok")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.RiskLevel != model.RiskLow || report.RequiresEscalation {
		t.Fatalf("zero claims: risk=%s escalate=%v, want low/false", report.RiskLevel, report.RequiresEscalation)
	}
	if !almostEqual(report.Scores.Completeness, 0.3) {
		t.Errorf("completeness = %v, want 0.3", report.Scores.Completeness)
	}
	if !almostEqual(report.Scores.Accuracy, 0.5) || !almostEqual(report.Scores.Confidence, 0.5) {
		t.Errorf("neutral scores expected, got %+v", report.Scores)
	}
	if len(report.Signals) != 1 || report.Signals[0].Type != model.SignalNoClaims {
		t.Errorf("signals = %v, want a single no_claims signal", report.Signals)
	}
	if report.Checks == nil {
		t.Error("checks should be empty, not nil")
	}
}

func TestValidateAggregation(t *testing.T) {
	claims := []model.ExtractedClaim{
		claim("malaria causes fever", model.ClaimSymptom, 0.9),
		claim("use mosquito nets", model.ClaimPrevention, 0.9),
		claim("give aspirin for dengue", model.ClaimTreatment, 0.8),
		claim("seek help if bleeding", model.ClaimWarning, 0.7),
		claim("interesting fact", model.ClaimGeneral, 0.6),
	}
	checker := &fakeChecker{results: []model.FactCheckResult{
		checkResult(claims[0], model.CheckVerified, 0.8, "World Health Organization"),
		checkResult(claims[1], model.CheckVerified, 0.8, "World Health Organization", "Indian Council of Medical Research"),
		checkResult(claims[2], model.CheckContradicted, 0.9),
		checkResult(claims[3], model.CheckConcerning, 0.5),
		checkResult(claims[4], model.CheckUnverifiable, 0.3),
	}}
	v := NewValidator(&fakeExtractor{claims: claims}, checker, defaultThresholds(), nil)

	report, err := v.Validate(context.Background(), "query", "response")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := model.ClaimTally{Total: 5, Verified: 2, Contradicted: 1, Concerning: 1, Unverifiable: 1}
	if report.Tally != want {
		t.Fatalf("tally = %+v, want %+v", report.Tally, want)
	}

	if !almostEqual(report.Scores.Accuracy, 0.4) {
		t.Errorf("accuracy = %v, want 0.4", report.Scores.Accuracy)
	}
	// 0.7 - 1/5 * 0.5
	if !almostEqual(report.Scores.Appropriateness, 0.6) {
		t.Errorf("appropriateness = %v, want 0.6", report.Scores.Appropriateness)
	}
	if !almostEqual(report.Scores.Completeness, 1.0) {
		t.Errorf("completeness = %v, want 1.0", report.Scores.Completeness)
	}
	// (0.9*0.8 + 0.9*0.8 + 0.8*0.9 + 0.7*0.5 + 0.6*0.3) / 5
	if !almostEqual(report.Scores.Confidence, (0.72+0.72+0.72+0.35+0.18)/5) {
		t.Errorf("confidence = %v", report.Scores.Confidence)
	}

	if report.RiskLevel != model.RiskHigh || !report.RequiresEscalation {
		t.Errorf("risk = %s escalate=%v, want high/true", report.RiskLevel, report.RequiresEscalation)
	}

	var haveContradicted, haveConcerning bool
	for _, trig := range report.Triggers {
		if trig == "Contradicted claim: give aspirin for dengue" {
			haveContradicted = true
		}
		if trig == "Concerning claim: seek help if bleeding" {
			haveConcerning = true
		}
	}
	if !haveContradicted || !haveConcerning {
		t.Errorf("triggers = %v, want contradicted and concerning entries", report.Triggers)
	}

	wantSources := []string{"World Health Organization", "Indian Council of Medical Research"}
	if len(report.SourcesUsed) != 2 || report.SourcesUsed[0] != wantSources[0] || report.SourcesUsed[1] != wantSources[1] {
		t.Errorf("sources_used = %v, want %v", report.SourcesUsed, wantSources)
	}
}

func TestRiskGrading(t *testing.T) {
	mk := func(statuses ...model.FactCheckStatus) []model.FactCheckResult {
		results := make([]model.FactCheckResult, len(statuses))
		for i, s := range statuses {
			results[i] = checkResult(claim("c", model.ClaimGeneral, 0.5), s, 0.5)
		}
		return results
	}

	tests := []struct {
		name     string
		checks   []model.FactCheckResult
		risk     model.RiskLevel
		escalate bool
	}{
		{
			"one contradiction is high",
			mk(model.CheckVerified, model.CheckContradicted),
			model.RiskHigh, true,
		},
		{
			"three concerning is high",
			mk(model.CheckConcerning, model.CheckConcerning, model.CheckConcerning),
			model.RiskHigh, true,
		},
		{
			"one concerning is medium without escalation",
			mk(model.CheckVerified, model.CheckConcerning),
			model.RiskMedium, false,
		},
		{
			"unverifiable majority is medium",
			mk(model.CheckVerified, model.CheckUnverifiable, model.CheckUnverifiable),
			model.RiskMedium, false,
		},
		{
			"unverifiable at exactly half stays low",
			mk(model.CheckVerified, model.CheckUnverifiable),
			model.RiskLow, false,
		},
		{
			"all verified is low",
			mk(model.CheckVerified, model.CheckVerified),
			model.RiskLow, false,
		},
	}

	v := NewValidator(nil, nil, defaultThresholds(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := buildTally(tt.checks)
			risk, escalate, _ := v.assessRisk(tally, tt.checks)
			if risk != tt.risk || escalate != tt.escalate {
				t.Errorf("risk=%s escalate=%v, want %s/%v", risk, escalate, tt.risk, tt.escalate)
			}
		})
	}
}

func TestAccuracySignalSeverity(t *testing.T) {
	v := NewValidator(nil, nil, defaultThresholds(), nil)

	tests := []struct {
		name     string
		verified int
		total    int
		severity model.SignalSeverity
	}{
		{"low accuracy is critical", 1, 4, model.SeverityCritical},
		{"middling accuracy warns", 3, 5, model.SeverityWarning},
		{"high accuracy is info", 4, 5, model.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := model.ClaimTally{Total: tt.total, Verified: tt.verified}
			scores := model.Scores{Accuracy: float64(tt.verified) / float64(tt.total)}
			signals := v.buildSignals(tally, scores)
			if len(signals) == 0 || signals[0].Type != model.SignalAccuracy {
				t.Fatalf("expected leading accuracy signal, got %v", signals)
			}
			if signals[0].Severity != tt.severity {
				t.Errorf("severity = %s, want %s", signals[0].Severity, tt.severity)
			}
			if signals[0].Data["formula"] == nil {
				t.Error("accuracy signal should carry its formula")
			}
		})
	}
}

func TestUsedFallbackFlag(t *testing.T) {
	fallbackClaims := []model.ExtractedClaim{
		{Text: "rest and fluids", Type: model.ClaimTreatment, Testable: true, Confidence: 0.7, Keyword: "rest"},
	}
	llmClaims := []model.ExtractedClaim{
		{Text: "rest and fluids", Type: model.ClaimTreatment, Testable: true, Confidence: 0.9},
	}

	checker := &fakeChecker{results: []model.FactCheckResult{
		checkResult(fallbackClaims[0], model.CheckVerified, 0.8),
	}}

	v := NewValidator(&fakeExtractor{claims: fallbackClaims}, checker, defaultThresholds(), nil)
	report, err := v.Validate(context.Background(), "q", "r")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.UsedFallback {
		t.Error("keyword claims should mark the report as fallback")
	}

	v = NewValidator(&fakeExtractor{claims: llmClaims}, checker, defaultThresholds(), nil)
	report, err = v.Validate(context.Background(), "q", "r")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.UsedFallback {
		t.Error("LLM claims should not mark the report as fallback")
	}
}

func TestValidateExtractorError(t *testing.T) {
	wantErr := errors.New("context canceled")
	v := NewValidator(&fakeExtractor{err: wantErr}, &fakeChecker{}, defaultThresholds(), nil)

	_, err := v.Validate(context.Background(), "q", "r")
	if err == nil || !strings.Contains(err.Error(), "extract claims") {
		t.Fatalf("err = %v, want wrapped extraction error", err)
	}
}
