package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prahari-health/prahari/internal/cache"
	"github.com/prahari-health/prahari/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the GORM-backed medical knowledge catalog. Reads dominate, so
// fact queries go through the cache; writes bump an epoch counter that
// invalidates every cached fact set at once.
type Store struct {
	db         *gorm.DB
	cache      cache.Cache
	ttl        time.Duration
	classifier *AuthorityClassifier
	logger     *zap.Logger

	epoch atomic.Int64
}

// NewStore creates a knowledge store. A nil cache disables caching; a nil
// logger silences it.
func NewStore(db *gorm.DB, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         db,
		cache:      c,
		ttl:        ttl,
		classifier: NewAuthorityClassifier(),
		logger:     logger,
	}
}

// ActiveFacts returns active facts of one type, most authoritative source
// first. conditionID scopes the query; zero means all conditions.
func (s *Store) ActiveFacts(ctx context.Context, factType model.FactType, conditionID int64) ([]model.MedicalFact, error) {
	key := s.factsKey(factType, conditionID)
	var facts []model.MedicalFact
	if cache.GetJSON(s.cache, key, &facts) {
		return facts, nil
	}

	q := s.db.WithContext(ctx).
		Preload("Source").
		Where("fact_type = ? AND is_active = ?", factType, true)
	if conditionID > 0 {
		q = q.Where("condition_id = ?", conditionID)
	}
	if err := q.Order("id ASC").Find(&facts).Error; err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}

	SortFactsByAuthority(facts)

	if err := cache.SetJSON(s.cache, key, facts, s.ttl); err != nil {
		s.logger.Debug("fact cache write failed", zap.Error(err))
	}
	return facts, nil
}

// Condition returns one condition by primary key
func (s *Store) Condition(ctx context.Context, id int64) (*model.MedicalCondition, error) {
	var c model.MedicalCondition
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

// ConditionByName returns one condition matched case-insensitively by name
func (s *Store) ConditionByName(ctx context.Context, name string) (*model.MedicalCondition, error) {
	var c model.MedicalCondition
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&c).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

// Conditions returns every condition in the catalog, name order
func (s *Store) Conditions(ctx context.Context) ([]model.MedicalCondition, error) {
	var rows []model.MedicalCondition
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	return rows, nil
}

// SourceByName returns one source matched case-insensitively by name
func (s *Store) SourceByName(ctx context.Context, name string) (*model.MedicalSource, error) {
	var src model.MedicalSource
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&src).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &src, nil
}

// ActiveSources returns active sources, most authoritative first
func (s *Store) ActiveSources(ctx context.Context) ([]model.MedicalSource, error) {
	var rows []model.MedicalSource
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("authority_level ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	return rows, nil
}

// CreateSource inserts a source, classifying its authority level when unset
func (s *Store) CreateSource(ctx context.Context, src *model.MedicalSource) error {
	if src.AuthorityLevel == 0 {
		src.AuthorityLevel = s.classifier.Classify(src.Name, src.URL)
	}
	if err := s.db.WithContext(ctx).Create(src).Error; err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	s.invalidate()
	return nil
}

// CreateCondition inserts a condition
func (s *Store) CreateCondition(ctx context.Context, c *model.MedicalCondition) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create condition: %w", err)
	}
	s.invalidate()
	return nil
}

// CreateFact inserts a fact
func (s *Store) CreateFact(ctx context.Context, f *model.MedicalFact) error {
	if f.Confidence == 0 {
		f.Confidence = defaultFactConfidence
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create fact: %w", err)
	}
	s.invalidate()
	return nil
}

// Stats summarizes catalog size for dashboards and the seed command
type Stats struct {
	Sources    int64 `json:"sources"`
	Conditions int64 `json:"conditions"`
	Facts      int64 `json:"facts"`
}

// Stats counts catalog rows
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.WithContext(ctx).Model(&model.MedicalSource{}).Count(&st.Sources).Error; err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.MedicalCondition{}).Count(&st.Conditions).Error; err != nil {
		return nil, fmt.Errorf("count conditions: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.MedicalFact{}).Count(&st.Facts).Error; err != nil {
		return nil, fmt.Errorf("count facts: %w", err)
	}
	return &st, nil
}

// factsKey includes the write epoch so any catalog write retires every
// cached fact set; retired entries age out by TTL.
func (s *Store) factsKey(factType model.FactType, conditionID int64) string {
	return cache.Key("facts",
		strconv.FormatInt(s.epoch.Load(), 10),
		string(factType),
		strconv.FormatInt(conditionID, 10),
	)
}

func (s *Store) invalidate() {
	s.epoch.Add(1)
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}
