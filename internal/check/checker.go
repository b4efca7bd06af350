// Package check verifies extracted claims against the medical knowledge base.
package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prahari-health/prahari/internal/model"
	"go.uber.org/zap"
)

// checkMaxAttempts allows one retry after a transient store failure
const checkMaxAttempts = 2

const checkRetryDelay = 200 * time.Millisecond

// checkSleepFunc is the sleep function used between retries (injectable for tests)
var checkSleepFunc = time.Sleep

// Confidence values for verdicts the knowledge base cannot quantify itself.
const (
	contradictedConfidence = 0.9 // contraindication table hit
	concerningConfidence   = 0.5 // warning/emergency claims forced to review
	untypedConfidence      = 0.3 // claim type has no fact category
	unmatchedConfidence    = 0.2 // checkable type, nothing matched
)

// FactSource is the slice of the knowledge catalog the checker reads
type FactSource interface {
	ActiveFacts(ctx context.Context, factType model.FactType, conditionID int64) ([]model.MedicalFact, error)
	Condition(ctx context.Context, id int64) (*model.MedicalCondition, error)
	Conditions(ctx context.Context) ([]model.MedicalCondition, error)
}

// Checker tests claims against sourced facts concurrently
type Checker struct {
	facts      FactSource
	maxWorkers int
	logger     *zap.Logger
}

// NewChecker creates a fact checker. maxWorkers bounds concurrent store
// queries; zero or negative selects the default of 4.
func NewChecker(facts FactSource, maxWorkers int, logger *zap.Logger) *Checker {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		facts:      facts,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// CheckSymptom tests a symptom claim against symptom facts. conditionID
// scopes the search; zero means all conditions.
func (c *Checker) CheckSymptom(ctx context.Context, claimText string, conditionID int64) (bool, float64, []model.MedicalFact, error) {
	return c.checkFacts(ctx, model.FactSymptom, claimText, conditionID)
}

// CheckTreatment tests a treatment claim against treatment facts
func (c *Checker) CheckTreatment(ctx context.Context, claimText string, conditionID int64) (bool, float64, []model.MedicalFact, error) {
	return c.checkFacts(ctx, model.FactTreatment, claimText, conditionID)
}

// CheckPrevention tests a prevention claim against prevention facts
func (c *Checker) CheckPrevention(ctx context.Context, claimText string, conditionID int64) (bool, float64, []model.MedicalFact, error) {
	return c.checkFacts(ctx, model.FactPrevention, claimText, conditionID)
}

// checkFacts matches a claim against active facts of one type. Verified
// means at least one match; confidence is the mean stored confidence of
// the matches, which arrive most authoritative first.
func (c *Checker) checkFacts(ctx context.Context, factType model.FactType, claimText string, conditionID int64) (bool, float64, []model.MedicalFact, error) {
	facts, err := c.facts.ActiveFacts(ctx, factType, conditionID)
	if err != nil {
		return false, 0, nil, fmt.Errorf("%w: load %s facts: %v", model.ErrKnowledgeLookup, factType, err)
	}

	var matches []model.MedicalFact
	var total float64
	for _, f := range facts {
		if textMatches(claimText, f.FactText) {
			matches = append(matches, f)
			total += f.Confidence
		}
	}
	if len(matches) == 0 {
		return false, 0, nil, nil
	}
	return true, total / float64(len(matches)), matches, nil
}

// CheckContraindications scans contraindication lists for hits against a
// treatment claim. conditionID scopes the scan; zero sweeps the whole
// catalog. Reasons name the matched entry and its condition.
func (c *Checker) CheckContraindications(ctx context.Context, treatmentText string, conditionID int64) (bool, []string, error) {
	var conditions []model.MedicalCondition
	if conditionID > 0 {
		cond, err := c.facts.Condition(ctx, conditionID)
		if err != nil {
			return false, nil, fmt.Errorf("%w: load condition %d: %v", model.ErrKnowledgeLookup, conditionID, err)
		}
		conditions = []model.MedicalCondition{*cond}
	} else {
		all, err := c.facts.Conditions(ctx)
		if err != nil {
			return false, nil, fmt.Errorf("%w: load conditions: %v", model.ErrKnowledgeLookup, err)
		}
		conditions = all
	}

	var reasons []string
	for _, cond := range conditions {
		for _, entry := range cond.Contraindications {
			if textMatches(treatmentText, entry) {
				reasons = append(reasons, fmt.Sprintf("%s (%s)", entry, cond.Name))
			}
		}
	}
	return len(reasons) > 0, reasons, nil
}

// CheckClaims checks every claim concurrently, preserving input order.
// Store failures never surface as errors here: the affected claim is
// reported unverifiable and the batch continues.
func (c *Checker) CheckClaims(ctx context.Context, claims []model.ExtractedClaim) []model.FactCheckResult {
	if len(claims) == 0 {
		return []model.FactCheckResult{}
	}

	results := make([]model.FactCheckResult, len(claims))
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, c.maxWorkers)

	for i, claim := range claims {
		wg.Add(1)
		go func(idx int, cl model.ExtractedClaim) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.FactCheckResult{
					Claim:       cl,
					Status:      model.CheckUnverifiable,
					Explanation: "check cancelled",
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkOne(ctx, cl)
		}(i, claim)
	}

	wg.Wait()
	return results
}

// checkOne maps one claim to its verdict by claim type
func (c *Checker) checkOne(ctx context.Context, claim model.ExtractedClaim) model.FactCheckResult {
	switch claim.Type {
	case model.ClaimSymptom:
		result, err := c.factVerdict(ctx, claim, model.FactSymptom)
		if err != nil {
			return c.lookupFailed(claim, err)
		}
		return result

	case model.ClaimTreatment:
		result, err := c.factVerdict(ctx, claim, model.FactTreatment)
		if err != nil {
			return c.lookupFailed(claim, err)
		}
		flagged, reasons, err := c.contraindicationsWithRetry(ctx, claim.Text)
		if err != nil {
			return c.lookupFailed(claim, err)
		}
		if flagged {
			result.Status = model.CheckContradicted
			result.Confidence = contradictedConfidence
			result.Explanation = "conflicts with contraindication: " + strings.Join(reasons, "; ")
		}
		return result

	case model.ClaimPrevention:
		result, err := c.factVerdict(ctx, claim, model.FactPrevention)
		if err != nil {
			return c.lookupFailed(claim, err)
		}
		return result

	case model.ClaimWarning, model.ClaimEmergency:
		return model.FactCheckResult{
			Claim:       claim,
			Status:      model.CheckConcerning,
			Confidence:  concerningConfidence,
			Explanation: "emergency and warning claims require expert review",
		}

	default:
		return model.FactCheckResult{
			Claim:       claim,
			Status:      model.CheckUnverifiable,
			Confidence:  untypedConfidence,
			Explanation: "claim type has no knowledge base category",
		}
	}
}

// factVerdict runs the fact match with retry and shapes the result
func (c *Checker) factVerdict(ctx context.Context, claim model.ExtractedClaim, factType model.FactType) (model.FactCheckResult, error) {
	verified, confidence, matches, err := c.factsWithRetry(ctx, factType, claim.Text)
	if err != nil {
		return model.FactCheckResult{}, err
	}
	if !verified {
		return model.FactCheckResult{
			Claim:       claim,
			Status:      model.CheckUnverifiable,
			Confidence:  unmatchedConfidence,
			Explanation: "no matching facts in the knowledge base",
		}, nil
	}
	return model.FactCheckResult{
		Claim:          claim,
		Status:         model.CheckVerified,
		Confidence:     confidence,
		MatchedFactIDs: factIDs(matches),
		Sources:        sourceNames(matches),
	}, nil
}

// lookupFailed degrades a claim to unverifiable when the store is down
func (c *Checker) lookupFailed(claim model.ExtractedClaim, err error) model.FactCheckResult {
	c.logger.Warn("knowledge lookup failed",
		zap.String("claim_type", string(claim.Type)),
		zap.Error(err),
	)
	return model.FactCheckResult{
		Claim:       claim,
		Status:      model.CheckUnverifiable,
		Explanation: "knowledge base lookup failed",
	}
}

// factsWithRetry retries transient store failures once after a short delay
func (c *Checker) factsWithRetry(ctx context.Context, factType model.FactType, claimText string) (bool, float64, []model.MedicalFact, error) {
	var (
		verified   bool
		confidence float64
		matches    []model.MedicalFact
		err        error
	)
	for attempt := 0; attempt < checkMaxAttempts; attempt++ {
		verified, confidence, matches, err = c.checkFacts(ctx, factType, claimText, 0)
		if err == nil || !isRetryableStoreError(err) {
			return verified, confidence, matches, err
		}
		if attempt < checkMaxAttempts-1 {
			checkSleepFunc(checkRetryDelay)
		}
	}
	return verified, confidence, matches, err
}

func (c *Checker) contraindicationsWithRetry(ctx context.Context, treatmentText string) (bool, []string, error) {
	var (
		flagged bool
		reasons []string
		err     error
	)
	for attempt := 0; attempt < checkMaxAttempts; attempt++ {
		flagged, reasons, err = c.CheckContraindications(ctx, treatmentText, 0)
		if err == nil || !isRetryableStoreError(err) {
			return flagged, reasons, err
		}
		if attempt < checkMaxAttempts-1 {
			checkSleepFunc(checkRetryDelay)
		}
	}
	return flagged, reasons, err
}

// isRetryableStoreError reports whether a store failure is worth one retry
func isRetryableStoreError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "bad connection") ||
		strings.Contains(s, "broken pipe")
}

// textMatches is the matching rule used everywhere in this package:
// case-insensitive substring containment in either direction.
func textMatches(claim, fact string) bool {
	cl := strings.ToLower(strings.TrimSpace(claim))
	fa := strings.ToLower(strings.TrimSpace(fact))
	if cl == "" || fa == "" {
		return false
	}
	return strings.Contains(cl, fa) || strings.Contains(fa, cl)
}

func factIDs(facts []model.MedicalFact) []int64 {
	ids := make([]int64, 0, len(facts))
	for _, f := range facts {
		ids = append(ids, f.ID)
	}
	return ids
}

// sourceNames returns distinct source names in authority order
func sourceNames(facts []model.MedicalFact) []string {
	seen := make(map[string]bool, len(facts))
	var names []string
	for _, f := range facts {
		if f.Source == nil || f.Source.Name == "" || seen[f.Source.Name] {
			continue
		}
		seen[f.Source.Name] = true
		names = append(names, f.Source.Name)
	}
	return names
}
