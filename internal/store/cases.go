package store

import (
	"context"
	"fmt"

	"github.com/prahari-health/prahari/internal/model"
	"gorm.io/gorm"
)

// Cases persists escalated cases and their lifecycle
type Cases struct {
	db *gorm.DB
}

// NewCases creates a case repository
func NewCases(db *gorm.DB) *Cases {
	return &Cases{db: db}
}

// Create inserts a new case
func (s *Cases) Create(ctx context.Context, c *model.EscalatedCase) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// Get returns one case by id
func (s *Cases) Get(ctx context.Context, id int64) (*model.EscalatedCase, error) {
	var c model.EscalatedCase
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetByNumber returns one case by its public case number
func (s *Cases) GetByNumber(ctx context.Context, caseNumber string) (*model.EscalatedCase, error) {
	var c model.EscalatedCase
	err := s.db.WithContext(ctx).
		Where("case_number = ?", caseNumber).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Save writes back lifecycle mutations (status, notes, timestamps)
func (s *Cases) Save(ctx context.Context, c *model.EscalatedCase) error {
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("save case: %w", err)
	}
	return nil
}

// Pending returns open and in-progress cases, oldest first. A non-nil
// expertID narrows to cases assigned to that expert.
func (s *Cases) Pending(ctx context.Context, expertID *int64) ([]model.EscalatedCase, error) {
	q := s.db.WithContext(ctx).
		Where("status IN ?", []model.CaseStatus{model.CaseOpen, model.CaseInProgress})
	if expertID != nil {
		q = q.Where("assigned_expert_id = ?", *expertID)
	}

	var cases []model.EscalatedCase
	if err := q.Order("created_at ASC").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("query pending cases: %w", err)
	}
	return cases, nil
}

// ByUser returns every case opened for a user, newest first
func (s *Cases) ByUser(ctx context.Context, userID string, limit int) ([]model.EscalatedCase, error) {
	if limit <= 0 {
		limit = 50
	}
	var cases []model.EscalatedCase
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&cases).Error
	if err != nil {
		return nil, fmt.Errorf("query cases by user: %w", err)
	}
	return cases, nil
}
