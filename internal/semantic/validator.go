// Package semantic validates bot answers claim by claim against the
// knowledge base and aggregates the verdicts into a transparent report.
package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/prahari-health/prahari/internal/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ClaimExtractor pulls testable claims out of an answer
type ClaimExtractor interface {
	Extract(ctx context.Context, text string) ([]model.ExtractedClaim, error)
}

// ClaimChecker tests claims against the knowledge base
type ClaimChecker interface {
	CheckClaims(ctx context.Context, claims []model.ExtractedClaim) []model.FactCheckResult
}

// Validator is the semantic stage of the pipeline
type Validator struct {
	extractor  ClaimExtractor
	checker    ClaimChecker
	thresholds model.ThresholdConfig
	logger     *zap.Logger
}

// NewValidator creates a semantic validator
func NewValidator(extractor ClaimExtractor, checker ClaimChecker, thresholds model.ThresholdConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		extractor:  extractor,
		checker:    checker,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Validate extracts claims from the response and checks each one. The only
// error it returns is caller cancellation; everything else degrades inside
// the report.
func (v *Validator) Validate(ctx context.Context, query, response string) (*model.SemanticReport, error) {
	start := time.Now()
	v.logger.Debug("semantic validation started",
		zap.Int("query_len", len(query)),
		zap.Int("response_len", len(response)),
	)

	claims, err := v.extractor.Extract(ctx, response)
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	report := &model.SemanticReport{
		Claims:       claims,
		UsedFallback: usedFallback(claims),
		RiskLevel:    model.RiskLow,
	}

	if len(claims) == 0 {
		v.applyNoClaims(report)
		report.DurationMS = time.Since(start).Milliseconds()
		return report, nil
	}

	checks := v.checker.CheckClaims(ctx, claims)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	report.Checks = checks
	report.Tally = buildTally(checks)
	report.Scores = buildScores(claims, checks, report.Tally)
	report.RiskLevel, report.RequiresEscalation, report.Triggers = v.assessRisk(report.Tally, checks)
	report.SourcesUsed = collectSources(checks)
	report.Signals = v.buildSignals(report.Tally, report.Scores)
	report.DurationMS = time.Since(start).Milliseconds()

	v.logger.Info("semantic validation complete",
		zap.Int("claims", report.Tally.Total),
		zap.Int("verified", report.Tally.Verified),
		zap.Int("contradicted", report.Tally.Contradicted),
		zap.Int("unverifiable", report.Tally.Unverifiable),
		zap.String("risk_level", string(report.RiskLevel)),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return report, nil
}

// usedFallback reports whether the keyword extractor produced the claims.
// Claims from the LLM path never carry a matching keyword.
func usedFallback(claims []model.ExtractedClaim) bool {
	for _, c := range claims {
		if c.Keyword != "" {
			return true
		}
	}
	return false
}

// collectSources returns distinct source names behind verified matches,
// keeping the authority order the checker produced.
func collectSources(checks []model.FactCheckResult) []string {
	verified := lo.Filter(checks, func(c model.FactCheckResult, _ int) bool {
		return c.Status == model.CheckVerified
	})
	return lo.Uniq(lo.FlatMap(verified, func(c model.FactCheckResult, _ int) []string {
		return c.Sources
	}))
}
