// Package pipeline runs bot answers through the validation ladder: three
// deterministic keyword rules, then an optional semantic stage that checks
// extracted claims against the knowledge base. The ladder is first-match-wins
// and fail-closed: whatever goes wrong, the caller gets a verdict that errs
// toward escalation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/prahari-health/prahari/internal/model"
)

// Input is one (user message, bot answer) pair to validate.
type Input struct {
	UserQuery   string
	BotResponse string

	// BaselineConfidence is the upstream generator's own confidence in the
	// answer. Zero or negative means unknown and maps to the configured
	// default.
	BaselineConfidence float64

	// UseSemantic asks for the claim-level stage on top of the keyword
	// rules. It is ignored when no semantic stage is wired.
	UseSemantic bool

	// UserID and MessageID tie the audit row to the conversation.
	UserID    string
	MessageID string
}

// SemanticStage checks an answer claim by claim against the knowledge base
type SemanticStage interface {
	Validate(ctx context.Context, query, response string) (*model.SemanticReport, error)
}

// AuditStore persists one row per validation
type AuditStore interface {
	Create(ctx context.Context, v *model.ResponseValidation) error
}

// Orchestrator owns the rule ladder and the optional semantic refinement.
// It is safe for concurrent use.
type Orchestrator struct {
	rules    []Rule
	cfg      model.ValidationConfig
	keywords model.KeywordConfig
	semantic SemanticStage
	audit    AuditStore
	logger   *zap.Logger
}

// New creates an orchestrator. semantic and audit may be nil: without a
// semantic stage only the keyword rules run, and without an audit store
// nothing is persisted.
func New(cfg model.ValidationConfig, keywords model.KeywordConfig, semantic SemanticStage, audit AuditStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		rules:    defaultLadder(),
		cfg:      cfg,
		keywords: keywords,
		semantic: semantic,
		audit:    audit,
		logger:   logger,
	}
}

// Validate produces exactly one verdict for the pair. The only error it
// returns is context cancellation; every other failure mode folds into the
// fail-closed verdict so an unvalidated answer never slips through as safe.
func (o *Orchestrator) Validate(ctx context.Context, input Input) (*model.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := o.run(ctx, input)
	if err != nil {
		return nil, err
	}

	result.ValidatedAt = time.Now().UTC()
	o.persist(ctx, input, result)

	o.logger.Info("validation complete",
		zap.String("message_id", input.MessageID),
		zap.String("rule", result.Rule),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Bool("requires_escalation", result.RequiresEscalation),
		zap.String("trigger", string(result.EscalationTrigger)),
		zap.Float64("confidence", result.ConfidenceScore))

	return result, nil
}

// run executes the ladder and the semantic refinement. A panic anywhere in
// a rule or the semantic stage becomes the fail-closed verdict.
func (o *Orchestrator) run(ctx context.Context, input Input) (result *model.ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("validation panicked, failing closed", zap.Any("panic", r))
			result = failClosed(fmt.Sprintf("%v", r))
			err = nil
		}
	}()

	confidence := input.BaselineConfidence
	if confidence <= 0 {
		confidence = o.cfg.DefaultConfidence
	}

	ec := newEvalContext(input, confidence, &o.keywords, o.cfg.Thresholds)

	for _, rule := range o.rules {
		verdict, ruleErr := rule.Evaluate(ctx, ec)
		if ruleErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.logger.Error("rule failed, failing closed",
				zap.String("rule", rule.Name), zap.Error(ruleErr))
			return failClosed(ruleErr.Error()), nil
		}
		if verdict != nil {
			verdict.Rule = rule.Name
			result = verdict
			break
		}
	}
	if result == nil {
		// risk_heuristics always decides; reaching here means the ladder
		// was misconfigured
		return failClosed("no rule produced a verdict"), nil
	}

	if o.semanticApplies(input, result) {
		if err := o.refine(ctx, input, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// semanticApplies gates the claim-level stage. Emergency and combination
// verdicts are final; anything else, including a pending heuristic
// escalation, may still be refined.
func (o *Orchestrator) semanticApplies(input Input, result *model.ValidationResult) bool {
	if !input.UseSemantic || o.semantic == nil {
		return false
	}
	switch result.EscalationTrigger {
	case model.TriggerEmergencyKeywords, model.TriggerDangerousCombination:
		return false
	}
	return true
}

// refine runs the semantic stage and folds its report into the verdict.
// Contradictions and low accuracy escalate; a well-verified answer clears a
// pending heuristic escalation. A failed stage keeps the rule verdict.
func (o *Orchestrator) refine(ctx context.Context, input Input, result *model.ValidationResult) error {
	report, err := o.semantic.Validate(ctx, input.UserQuery, input.BotResponse)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		o.logger.Warn("semantic stage failed, keeping rule verdict",
			zap.String("rule", result.Rule), zap.Error(err))
		return nil
	}

	result.Semantic = report
	result.VerifiedClaims = report.VerifiedClaimTexts()
	result.ContradictedClaims = append(result.ContradictedClaims, report.ContradictedClaimTexts()...)
	result.SourcesUsed = report.SourcesUsed
	accuracy := report.Scores.Accuracy
	semConfidence := report.Scores.Confidence
	result.AccuracyScore = &accuracy
	result.SemanticConfidence = &semConfidence

	th := o.cfg.Thresholds
	switch {
	case report.Tally.Contradicted > 0:
		result.RiskLevel = model.MaxRisk(result.RiskLevel, model.RiskHigh)
		result.RequiresEscalation = true
		result.EscalationTrigger = model.TriggerContradictions
		result.Message = fmt.Sprintf("Response contradicts medical knowledge: %s",
			joinFirst(report.ContradictedClaimTexts(), 2))

	case report.Tally.Total > 0 && accuracy < th.LowAccuracy:
		result.RiskLevel = model.MaxRisk(result.RiskLevel, model.RiskHigh)
		result.RequiresEscalation = true
		result.EscalationTrigger = model.TriggerLowAccuracy
		result.Message = "Low accuracy response - requires expert review"

	case accuracy > th.HighAccuracy && report.Tally.Verified > 0:
		result.RiskLevel = model.RiskLow
		result.RequiresEscalation = false
		result.EscalationTrigger = ""
		result.Message = "Response verified against the knowledge base"
	}

	return nil
}

// persist writes the audit row. Persistence failures are logged and
// swallowed: the verdict has already been decided and must reach the caller.
func (o *Orchestrator) persist(ctx context.Context, input Input, result *model.ValidationResult) {
	if o.audit == nil {
		return
	}

	keywords := make([]string, 0, len(result.EmergencyKeywords)+len(result.HighRiskKeywords))
	keywords = append(keywords, result.EmergencyKeywords...)
	keywords = append(keywords, result.HighRiskKeywords...)

	row := &model.ResponseValidation{
		UserID:             input.UserID,
		MessageID:          input.MessageID,
		UserQuery:          input.UserQuery,
		BotResponse:        input.BotResponse,
		RiskLevel:          result.RiskLevel,
		RequiresEscalation: result.RequiresEscalation,
		EscalationTrigger:  string(result.EscalationTrigger),
		ConfidenceScore:    result.ConfidenceScore,
		AccuracyScore:      result.AccuracyScore,
		SemanticConfidence: result.SemanticConfidence,
		Keywords:           datatypes.NewJSONSlice(keywords),
		ContradictedClaims: datatypes.NewJSONSlice(result.ContradictedClaims),
		Message:            result.Message,
	}
	if err := o.audit.Create(ctx, row); err != nil {
		o.logger.Error("persist validation failed",
			zap.String("message_id", input.MessageID), zap.Error(err))
	}
}

// failClosed is the verdict for anything the pipeline could not evaluate:
// treat the answer as high risk and force review.
func failClosed(reason string) *model.ValidationResult {
	return &model.ValidationResult{
		RiskLevel:          model.RiskHigh,
		RequiresEscalation: true,
		EscalationTrigger:  model.TriggerValidationError,
		Message:            "Validation error: " + reason,
		ConfidenceScore:    0,
	}
}
