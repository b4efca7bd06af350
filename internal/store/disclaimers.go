package store

import (
	"context"
	"fmt"

	"github.com/prahari-health/prahari/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Disclaimers persists disclaimer texts and the shown-to-user audit trail
type Disclaimers struct {
	db *gorm.DB
}

// NewDisclaimers creates a disclaimer repository
func NewDisclaimers(db *gorm.DB) *Disclaimers {
	return &Disclaimers{db: db}
}

// ActiveByRiskAndLanguage returns the highest-priority active disclaimer
// for the pair, or model.ErrNotFound.
func (s *Disclaimers) ActiveByRiskAndLanguage(ctx context.Context, risk model.RiskLevel, lang model.Language) (*model.Disclaimer, error) {
	var d model.Disclaimer
	err := s.db.WithContext(ctx).
		Where("risk_level = ? AND language = ? AND is_active = ?", risk, lang, true).
		Order("priority DESC").
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// CreateDefault inserts a synthesized default row. The partial unique index
// on active (risk_level, language) turns concurrent first accesses into one
// insert plus no-ops; the surviving row is re-read and returned.
func (s *Disclaimers) CreateDefault(ctx context.Context, d *model.Disclaimer) (*model.Disclaimer, error) {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(d).Error
	if err != nil {
		return nil, fmt.Errorf("create default disclaimer: %w", err)
	}

	// DoNothing leaves d.ID zero when another writer won; read the winner
	if d.ID != 0 {
		return d, nil
	}
	return s.ActiveByRiskAndLanguage(ctx, d.RiskLevel, d.Language)
}

// Create inserts a custom disclaimer row. Activating a replacement
// deactivates the previous active row for the pair first, inside one
// transaction, so the partial unique index never rejects the override.
func (s *Disclaimers) Create(ctx context.Context, d *model.Disclaimer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d.IsActive {
			err := tx.Model(&model.Disclaimer{}).
				Where("risk_level = ? AND language = ? AND is_active = ?", d.RiskLevel, d.Language, true).
				Update("is_active", false).Error
			if err != nil {
				return fmt.Errorf("deactivate previous disclaimer: %w", err)
			}
		}
		if err := tx.Create(d).Error; err != nil {
			return fmt.Errorf("create disclaimer: %w", err)
		}
		return nil
	})
}

// Track appends one shown-disclaimer audit row
func (s *Disclaimers) Track(ctx context.Context, t *model.DisclaimerTracking) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("track disclaimer: %w", err)
	}
	return nil
}

// History returns the most recent disclaimers shown to a user
func (s *Disclaimers) History(ctx context.Context, userID string, limit int) ([]model.DisclaimerTracking, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []model.DisclaimerTracking
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("shown_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query disclaimer history: %w", err)
	}
	return rows, nil
}
