package store

import (
	"context"
	"fmt"

	"github.com/prahari-health/prahari/internal/model"
	"gorm.io/gorm"
)

// Experts reads the reviewer roster. The roster itself is maintained out
// of band; the pipeline only selects and inspects.
type Experts struct {
	db *gorm.DB
}

// NewExperts creates an expert repository
func NewExperts(db *gorm.DB) *Experts {
	return &Experts{db: db}
}

// FirstAvailable returns the first active, available expert in primary key
// order. Deterministic, no load balancing. Returns model.ErrNotFound when
// nobody is on duty.
func (s *Experts) FirstAvailable(ctx context.Context) (*model.Expert, error) {
	var e model.Expert
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND is_available = ?", true, true).
		Order("id ASC").
		First(&e).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// Get returns one expert by id
func (s *Experts) Get(ctx context.Context, id int64) (*model.Expert, error) {
	var e model.Expert
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// Create adds an expert to the roster
func (s *Experts) Create(ctx context.Context, e *model.Expert) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create expert: %w", err)
	}
	return nil
}
