package store

import (
	"context"
	"fmt"
	"time"

	"github.com/prahari-health/prahari/internal/model"
	"gorm.io/gorm"
)

// Validations persists and queries ResponseValidation audit rows
type Validations struct {
	db *gorm.DB
}

// NewValidations creates a validation repository
func NewValidations(db *gorm.DB) *Validations {
	return &Validations{db: db}
}

// Create appends one validation row
func (s *Validations) Create(ctx context.Context, v *model.ResponseValidation) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("create validation: %w", err)
	}
	return nil
}

// ByUser returns the most recent validations for a user
func (s *Validations) ByUser(ctx context.Context, userID string, limit int) ([]model.ResponseValidation, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.ResponseValidation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query validations by user: %w", err)
	}
	return rows, nil
}

// ByMessage returns the validation recorded for one message
func (s *Validations) ByMessage(ctx context.Context, messageID string) (*model.ResponseValidation, error) {
	var row model.ResponseValidation
	err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

// InRange returns validations created inside [from, to), oldest first.
// Quality dashboards page through this.
func (s *Validations) InRange(ctx context.Context, from, to time.Time, limit int) ([]model.ResponseValidation, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []model.ResponseValidation
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query validations in range: %w", err)
	}
	return rows, nil
}

// CountByRisk tallies validations per risk level inside [from, to)
func (s *Validations) CountByRisk(ctx context.Context, from, to time.Time) (map[model.RiskLevel]int64, error) {
	type bucket struct {
		RiskLevel model.RiskLevel
		Count     int64
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).
		Model(&model.ResponseValidation{}).
		Select("risk_level, COUNT(*) as count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("risk_level").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("count validations by risk: %w", err)
	}

	counts := make(map[model.RiskLevel]int64, len(buckets))
	for _, b := range buckets {
		counts[b.RiskLevel] = b.Count
	}
	return counts, nil
}
