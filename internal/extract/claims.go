package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prahari-health/prahari/internal/cache"
	"github.com/prahari-health/prahari/internal/llm"
	"github.com/prahari-health/prahari/internal/model"
	"go.uber.org/zap"
)

const extractionInstruction = `Analyze this medical response and extract every medical claim it makes.

Return ONLY a JSON array, no prose. One element per claim:
{"text": "<the claim>", "type": "symptom|treatment|prevention|warning|emergency|general", "testable": true, "confidence": 0.9}

"testable" means the claim can be checked against medical references.
"confidence" is your certainty in the extraction, 0.0 to 1.0.

Response to analyze:
%s`

// claimTypeOrder fixes the bucket scan order so identical inputs always
// produce claims in the same sequence.
var claimTypeOrder = []model.ClaimType{
	model.ClaimTreatment,
	model.ClaimSymptom,
	model.ClaimPrevention,
	model.ClaimWarning,
}

// Extractor turns a free-text medical answer into structured claims. The
// primary path asks an LLM; the keyword fallback keeps extraction working
// when no provider is configured or the provider misbehaves.
type Extractor struct {
	provider llm.Provider
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger

	buckets            map[model.ClaimType][]string
	minLength          int
	fallbackConfidence float64
}

// NewExtractor creates a claim extractor. provider may be nil, which pins
// extraction to the keyword fallback.
func NewExtractor(provider llm.Provider, c cache.Cache, cfg model.ValidationConfig, buckets map[model.ClaimType][]string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(buckets) == 0 {
		buckets = model.DefaultKeywords().Buckets
	}
	minLength := cfg.MinTextLength
	if minLength <= 0 {
		minLength = 10
	}
	fallbackConfidence := cfg.FallbackConfidence
	if fallbackConfidence <= 0 {
		fallbackConfidence = 0.7
	}
	return &Extractor{
		provider:           provider,
		cache:              c,
		cacheTTL:           24 * time.Hour,
		logger:             logger,
		buckets:            buckets,
		minLength:          minLength,
		fallbackConfidence: fallbackConfidence,
	}
}

// WithCacheTTL overrides how long LLM extractions are cached
func (e *Extractor) WithCacheTTL(ttl time.Duration) *Extractor {
	if ttl > 0 {
		e.cacheTTL = ttl
	}
	return e
}

// Extract returns the claims found in text. Input shorter than the minimum
// length yields no claims and no error. LLM trouble falls back to keyword
// extraction; only caller cancellation surfaces as an error.
func (e *Extractor) Extract(ctx context.Context, text string) ([]model.ExtractedClaim, error) {
	normalized := Normalize(text)
	if len(normalized) < e.minLength {
		return nil, nil
	}

	if e.provider != nil {
		key := cache.Key("claims", e.provider.Name(), normalized)
		var cached []model.ExtractedClaim
		if cache.GetJSON(e.cache, key, &cached) {
			return cached, nil
		}

		claims, err := e.extractLLM(ctx, normalized)
		if err == nil {
			if cacheErr := cache.SetJSON(e.cache, key, claims, e.cacheTTL); cacheErr != nil {
				e.logger.Debug("claim cache write failed", zap.Error(cacheErr))
			}
			return claims, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("llm extraction failed, using keyword fallback",
			zap.String("provider", e.provider.Name()),
			zap.Error(err),
		)
	}

	return e.extractKeywords(normalized), nil
}

// extractLLM asks the provider for a strict JSON array of claims. Any
// deviation from the contract is an error; the caller decides the fallback.
func (e *Extractor) extractLLM(ctx context.Context, text string) ([]model.ExtractedClaim, error) {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: "You extract verifiable medical claims from health assistant answers.",
		Prompt: fmt.Sprintf(extractionInstruction, text),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtractionFailed, err)
	}
	claims, err := parseClaims(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtractionFailed, err)
	}
	return claims, nil
}

type claimPayload struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Testable   bool    `json:"testable"`
	Confidence float64 `json:"confidence"`
}

// parseClaims decodes the LLM reply. One strict decode: a single JSON
// array, optionally wrapped in a ```json fence. Anything else fails so the
// deterministic fallback takes over instead of heuristic repairs.
func parseClaims(reply string) ([]model.ExtractedClaim, error) {
	body := stripFence(strings.TrimSpace(reply))

	dec := json.NewDecoder(strings.NewReader(body))
	var payload []claimPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing content after claims array")
	}

	claims := make([]model.ExtractedClaim, 0, len(payload))
	for _, p := range payload {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return nil, fmt.Errorf("claim with empty text")
		}
		claims = append(claims, model.ExtractedClaim{
			Text:       text,
			Type:       model.NormalizeClaimType(p.Type),
			Testable:   p.Testable,
			Confidence: clamp01(p.Confidence),
		})
	}
	return claims, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// extractKeywords is the deterministic fallback: each bucket keyword found
// in the text contributes at most one claim, the sentence containing it.
func (e *Extractor) extractKeywords(text string) []model.ExtractedClaim {
	lowered := strings.ToLower(text)
	sentences := splitSentences(text)
	used := make(map[string]bool)

	var claims []model.ExtractedClaim
	for _, claimType := range bucketOrder(e.buckets) {
		for _, keyword := range e.buckets[claimType] {
			if used[keyword] || !strings.Contains(lowered, strings.ToLower(keyword)) {
				continue
			}
			sentence := sentenceContaining(sentences, keyword)
			if sentence == "" {
				continue
			}
			claims = append(claims, model.ExtractedClaim{
				Text:       sentence,
				Type:       claimType,
				Testable:   true,
				Confidence: e.fallbackConfidence,
				Keyword:    keyword,
			})
			used[keyword] = true
		}
	}
	return claims
}

// bucketOrder returns the fixed claim-type order plus any extra configured
// buckets in name order.
func bucketOrder(buckets map[model.ClaimType][]string) []model.ClaimType {
	order := make([]model.ClaimType, 0, len(buckets))
	seen := make(map[model.ClaimType]bool, len(buckets))
	for _, t := range claimTypeOrder {
		if _, ok := buckets[t]; ok {
			order = append(order, t)
			seen[t] = true
		}
	}
	var extra []model.ClaimType
	for t := range buckets {
		if !seen[t] {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(order, extra...)
}

func sentenceContaining(sentences []string, keyword string) string {
	lowered := strings.ToLower(keyword)
	for _, s := range sentences {
		if strings.Contains(strings.ToLower(s), lowered) {
			return s
		}
	}
	return ""
}
