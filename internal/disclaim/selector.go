// Package disclaim picks the cautionary text appended to every risky answer
// and records which user saw what. Selection is fail-open: whatever happens
// to the database, the caller always gets usable text for a valid risk
// level, falling back to English and then to the compiled-in defaults.
package disclaim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prahari-health/prahari/internal/cache"
	"github.com/prahari-health/prahari/internal/model"
	"go.uber.org/zap"
)

// DisclaimerStore persists disclaimer rows and the shown-to-user trail
type DisclaimerStore interface {
	ActiveByRiskAndLanguage(ctx context.Context, risk model.RiskLevel, lang model.Language) (*model.Disclaimer, error)
	CreateDefault(ctx context.Context, d *model.Disclaimer) (*model.Disclaimer, error)
	Track(ctx context.Context, t *model.DisclaimerTracking) error
	History(ctx context.Context, userID string, limit int) ([]model.DisclaimerTracking, error)
}

// Selector serves disclaimers by risk level and language
type Selector struct {
	store    DisclaimerStore
	cache    cache.Cache
	ttl      time.Duration
	defaults map[model.RiskLevel]map[model.Language]string
	logger   *zap.Logger
}

// NewSelector creates a selector. store and c may be nil: without a store
// only the built-in defaults are served, without a cache every call reads
// through. nil defaults load the compiled-in table.
func NewSelector(store DisclaimerStore, c cache.Cache, ttl time.Duration, defaults map[model.RiskLevel]map[model.Language]string, logger *zap.Logger) *Selector {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if defaults == nil {
		defaults = model.DefaultDisclaimers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		store:    store,
		cache:    c,
		ttl:      ttl,
		defaults: defaults,
		logger:   logger,
	}
}

// GetDisclaimer returns the disclaimer for a risk level and language.
// Unknown risk levels read as medium, unsupported languages as English.
// The error is reserved for an empty defaults table; callers holding the
// compiled-in defaults never see it.
func (s *Selector) GetDisclaimer(ctx context.Context, risk model.RiskLevel, lang model.Language) (*model.Disclaimer, error) {
	if !model.ValidRiskLevel(risk) {
		risk = model.RiskMedium
	}
	if !model.SupportedLanguage(lang) {
		lang = model.LangEnglish
	}

	key := cache.Key("disclaimer", string(risk), string(lang))
	var cached model.Disclaimer
	if cache.GetJSON(s.cache, key, &cached) {
		return &cached, nil
	}

	d := s.fromStore(ctx, risk, lang)
	if d == nil {
		d = s.synthesize(risk, lang)
		if d == nil {
			return nil, fmt.Errorf("no disclaimer text configured for risk %s", risk)
		}
		d = s.seedDefault(ctx, d)
	}

	if err := cache.SetJSON(s.cache, key, d, s.ttl); err != nil {
		s.logger.Debug("disclaimer cache write failed", zap.Error(err))
	}
	return d, nil
}

// TrackShown appends one audit row proving the user saw the disclaimer.
// Synthesized rows that never reached the database are skipped: there is
// no row to reference.
func (s *Selector) TrackShown(ctx context.Context, userID string, d *model.Disclaimer, messageID, context string) error {
	if s.store == nil || d == nil || d.ID == 0 {
		return nil
	}
	row := &model.DisclaimerTracking{
		UserID:       userID,
		DisclaimerID: d.ID,
		MessageID:    messageID,
		Context:      context,
	}
	if err := s.store.Track(ctx, row); err != nil {
		s.logger.Warn("disclaimer tracking failed",
			zap.String("user_id", userID),
			zap.Int64("disclaimer_id", d.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// History returns the most recent disclaimers shown to a user
func (s *Selector) History(ctx context.Context, userID string, limit int) ([]model.DisclaimerTracking, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.History(ctx, userID, limit)
}

// fromStore reads the active row for the pair, falling back to English.
// Any failure reads as a miss so selection can degrade to the defaults.
func (s *Selector) fromStore(ctx context.Context, risk model.RiskLevel, lang model.Language) *model.Disclaimer {
	if s.store == nil {
		return nil
	}

	d, err := s.store.ActiveByRiskAndLanguage(ctx, risk, lang)
	if err == nil {
		return d
	}
	if !errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("disclaimer lookup failed, serving built-in text", zap.Error(err))
		return nil
	}

	if lang == model.LangEnglish {
		return nil
	}
	d, err = s.store.ActiveByRiskAndLanguage(ctx, risk, model.LangEnglish)
	if err == nil {
		return d
	}
	if !errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("disclaimer fallback lookup failed, serving built-in text", zap.Error(err))
	}
	return nil
}

// synthesize builds an in-memory disclaimer from the defaults table
func (s *Selector) synthesize(risk model.RiskLevel, lang model.Language) *model.Disclaimer {
	texts := s.defaults[risk]
	if texts == nil {
		return nil
	}
	content, ok := texts[lang]
	if !ok {
		content = texts[model.LangEnglish]
		lang = model.LangEnglish
	}
	if content == "" {
		return nil
	}
	return &model.Disclaimer{
		RiskLevel: risk,
		Language:  lang,
		Content:   content,
		Priority:  1,
		IsActive:  true,
	}
}

// seedDefault persists a synthesized disclaimer so tracking rows have
// something to reference. Failure keeps the in-memory row.
func (s *Selector) seedDefault(ctx context.Context, d *model.Disclaimer) *model.Disclaimer {
	if s.store == nil {
		return d
	}
	created, err := s.store.CreateDefault(ctx, d)
	if err != nil {
		s.logger.Warn("seed default disclaimer failed",
			zap.String("risk_level", string(d.RiskLevel)),
			zap.String("language", string(d.Language)),
			zap.Error(err))
		return d
	}
	return created
}

// Append attaches disclaimer text to an outgoing answer
func Append(response string, d *model.Disclaimer) string {
	if d == nil || d.Content == "" {
		return response
	}
	return response + "\n\n" + d.Content
}

// TrackingContext renders the context column stored with a tracking row
func TrackingContext(risk model.RiskLevel, keywords []string) string {
	data, err := json.Marshal(map[string]any{
		"risk_level": risk,
		"keywords":   keywords,
	})
	if err != nil {
		return string(risk)
	}
	return string(data)
}
