// Package escalate opens and walks human-review cases for answers the
// pipeline refused to trust. A case is assigned to the first available
// expert at creation; assignment and notification are best-effort, the
// case itself is not.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prahari-health/prahari/internal/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// CaseStore persists escalated cases
type CaseStore interface {
	Create(ctx context.Context, c *model.EscalatedCase) error
	GetByNumber(ctx context.Context, caseNumber string) (*model.EscalatedCase, error)
	Save(ctx context.Context, c *model.EscalatedCase) error
	Pending(ctx context.Context, expertID *int64) ([]model.EscalatedCase, error)
}

// ExpertStore reads the reviewer roster
type ExpertStore interface {
	FirstAvailable(ctx context.Context) (*model.Expert, error)
	Get(ctx context.Context, id int64) (*model.Expert, error)
}

// Notifier delivers a short text message to a phone number
type Notifier interface {
	SendText(ctx context.Context, phone, text string) error
}

// Manager owns the case lifecycle
type Manager struct {
	cases    CaseStore
	experts  ExpertStore
	notifier Notifier
	logger   *zap.Logger
}

// NewManager creates a case manager. notifier may be nil when no messaging
// channel is wired.
func NewManager(cases CaseStore, experts ExpertStore, notifier Notifier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cases:    cases,
		experts:  experts,
		notifier: notifier,
		logger:   logger,
	}
}

// OpenCaseInput carries everything a new case records about the answer
// that triggered it.
type OpenCaseInput struct {
	UserID       string
	Query        string
	Response     string
	Severity     model.RiskLevel
	Reason       string
	Keywords     []string
	ValidationID *int64
}

// OpenCase creates a case, assigns the first available expert and notifies
// them. No expert on duty leaves the case unassigned; a failed notification
// leaves the case standing. Only the insert itself can fail the call.
func (m *Manager) OpenCase(ctx context.Context, input OpenCaseInput) (*model.EscalatedCase, error) {
	severity := input.Severity
	if !model.ValidRiskLevel(severity) {
		severity = model.RiskHigh
	}

	c := &model.EscalatedCase{
		CaseNumber:        newCaseNumber(),
		UserID:            input.UserID,
		OriginalQuery:     input.Query,
		BotResponse:       input.Response,
		Severity:          severity,
		Reason:            input.Reason,
		KeywordsTriggered: datatypes.NewJSONSlice(input.Keywords),
		ValidationID:      input.ValidationID,
		Status:            model.CaseOpen,
	}

	expert, err := m.experts.FirstAvailable(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		m.logger.Warn("no expert available, case stays unassigned",
			zap.String("case_number", c.CaseNumber))
	case err != nil:
		m.logger.Warn("expert lookup failed, case stays unassigned",
			zap.String("case_number", c.CaseNumber), zap.Error(err))
	default:
		c.AssignedExpertID = &expert.ID
	}

	if err := m.cases.Create(ctx, c); err != nil {
		m.logger.Error("open case failed",
			zap.String("user_id", input.UserID),
			zap.String("severity", string(severity)),
			zap.Error(err))
		return nil, fmt.Errorf("open case: %w", err)
	}

	m.logger.Info("case opened",
		zap.String("case_number", c.CaseNumber),
		zap.String("severity", string(c.Severity)),
		zap.String("user_id", c.UserID),
		zap.Bool("assigned", c.AssignedExpertID != nil))

	if c.AssignedExpertID != nil {
		m.notify(ctx, c, expert)
	}
	return c, nil
}

// StartReview moves a case to in_progress, optionally reassigning it
func (m *Manager) StartReview(ctx context.Context, caseNumber string, expertID *int64) (*model.EscalatedCase, error) {
	c, err := m.cases.GetByNumber(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(model.CaseInProgress) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, c.Status, model.CaseInProgress)
	}
	if expertID != nil {
		if _, err := m.experts.Get(ctx, *expertID); err != nil {
			return nil, fmt.Errorf("assign expert: %w", err)
		}
		c.AssignedExpertID = expertID
	}

	c.Status = model.CaseInProgress
	if err := m.cases.Save(ctx, c); err != nil {
		return nil, err
	}
	m.logger.Info("case review started", zap.String("case_number", c.CaseNumber))
	return c, nil
}

// ResolveCase ends a case with the reviewer's notes
func (m *Manager) ResolveCase(ctx context.Context, caseNumber, notes string) (*model.EscalatedCase, error) {
	return m.finish(ctx, caseNumber, model.CaseResolved, notes)
}

// CloseCase ends a case that needs no resolution, e.g. a false positive
func (m *Manager) CloseCase(ctx context.Context, caseNumber, notes string) (*model.EscalatedCase, error) {
	return m.finish(ctx, caseNumber, model.CaseClosed, notes)
}

func (m *Manager) finish(ctx context.Context, caseNumber string, status model.CaseStatus, notes string) (*model.EscalatedCase, error) {
	c, err := m.cases.GetByNumber(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, c.Status, status)
	}

	now := time.Now().UTC()
	c.Status = status
	c.ResolutionNotes = notes
	c.ResolvedAt = &now
	if err := m.cases.Save(ctx, c); err != nil {
		return nil, err
	}
	m.logger.Info("case finished",
		zap.String("case_number", c.CaseNumber),
		zap.String("status", string(status)))
	return c, nil
}

// Case returns one case by its public number
func (m *Manager) Case(ctx context.Context, caseNumber string) (*model.EscalatedCase, error) {
	return m.cases.GetByNumber(ctx, caseNumber)
}

// ListPending returns open and in-progress cases, oldest first. A non-nil
// expertID narrows to that expert's queue.
func (m *Manager) ListPending(ctx context.Context, expertID *int64) ([]model.EscalatedCase, error) {
	return m.cases.Pending(ctx, expertID)
}

// notify tells the assigned expert about the case over the messaging
// channel. Delivery failure never unwinds the case.
func (m *Manager) notify(ctx context.Context, c *model.EscalatedCase, expert *model.Expert) {
	if m.notifier == nil || expert.PhoneNumber == "" {
		return
	}

	text := fmt.Sprintf("🚨 New escalated case assigned to you:\nCase: %s\nSeverity: %s\nReason: %s\nPatient: %s",
		c.CaseNumber, c.Severity, c.Reason, c.UserID)
	if err := m.notifier.SendText(ctx, expert.PhoneNumber, text); err != nil {
		m.logger.Warn("expert notification failed",
			zap.String("case_number", c.CaseNumber),
			zap.Int64("expert_id", expert.ID),
			zap.Error(err))
	}
}

// newCaseNumber mints the public identifier experts see in their queue
func newCaseNumber() string {
	return "CASE-" + strings.ToUpper(uuid.NewString()[:8])
}
