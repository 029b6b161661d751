// Package feedback orchestrates analyst-feedback reanalysis: the
// per-case submission state machine, persistence of the adjusted risk
// tuple, and the rescored lifecycle event.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

const (
	// reanalysisWindow and reanalysisBudget bound how often a single
	// case can be rescored. The budget is generous; it exists to stop
	// runaway clients, not to throttle analysts.
	reanalysisWindow = time.Minute
	reanalysisBudget = 20

	caseCacheTTL = 5 * time.Minute
)

// Engine runs feedback reanalysis. A case is either idle or
// re-analyzing; concurrent submissions for the same case are rejected
// rather than queued.
type Engine struct {
	repo     domain.Repository
	cache    domain.Cache
	rescorer domain.Rescorer
	bus      domain.EventBus
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool // tenantID + "/" + caseID
}

// NewEngine wires the reanalysis engine. Cache and bus may be nil in
// tests; repository and rescorer are required.
func NewEngine(repo domain.Repository, cache domain.Cache, rescorer domain.Rescorer, bus domain.EventBus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:     repo,
		cache:    cache,
		rescorer: rescorer,
		bus:      bus,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Submit runs one feedback reanalysis for a case and returns the
// updated record. Empty feedback, closed cases, concurrent submissions,
// and budget exhaustion are all rejected before any state changes.
func (e *Engine) Submit(ctx context.Context, tenantID, caseID, feedbackText string) (*domain.DisputeCase, error) {
	trimmed := strings.TrimSpace(feedbackText)
	if trimmed == "" {
		return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrEmptyFeedback)
	}

	c, err := e.repo.GetCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case %s: %w", caseID, err)
	}
	if c.Closed() {
		return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrCaseClosed)
	}

	if err := e.acquire(tenantID, caseID); err != nil {
		return nil, err
	}
	defer e.release(tenantID, caseID)

	if err := e.checkBudget(ctx, tenantID, caseID); err != nil {
		return nil, err
	}

	result, err := e.rescorer.Rescore(ctx, domain.RescoreRequest{
		CaseID:       caseID,
		FeedbackText: trimmed,
		CaseSnapshot: c.Clone(),
	})
	if err != nil {
		return nil, fmt.Errorf("rescore case %s: %w", caseID, err)
	}

	updated := c.Clone()
	updated.RiskScore = domain.ClampScore(result.RiskScore)
	updated.Recommendation = result.Recommendation
	updated.Confidence = domain.ClampScore(result.Confidence)
	updated.Analysis = result.Analysis
	updated.AnalystFeedback = trimmed
	updated.Status = domain.StatusPendingReview
	updated.Touch()

	if err := e.repo.UpdateCase(ctx, tenantID, updated); err != nil {
		return nil, fmt.Errorf("persist rescored case %s: %w", caseID, err)
	}

	e.refreshCache(ctx, tenantID, updated)
	e.publishRescored(ctx, tenantID, updated, c.RiskScore)

	e.logger.Info("case rescored on analyst feedback",
		"tenant_id", tenantID,
		"case_id", caseID,
		"previous_score", c.RiskScore,
		"new_score", updated.RiskScore,
		"recommendation", updated.Recommendation,
		"rescorer", e.rescorer.Name())

	return updated, nil
}

// Reanalyzing reports whether a case currently has a submission in
// flight.
func (e *Engine) Reanalyzing(tenantID, caseID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[tenantID+"/"+caseID]
}

func (e *Engine) acquire(tenantID, caseID string) error {
	key := tenantID + "/" + caseID
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[key] {
		return fmt.Errorf("case %s: %w", caseID, domain.ErrReanalysisPending)
	}
	e.inFlight[key] = true
	return nil
}

func (e *Engine) release(tenantID, caseID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, tenantID+"/"+caseID)
}

func (e *Engine) checkBudget(ctx context.Context, tenantID, caseID string) error {
	if e.cache == nil {
		return nil
	}
	count, err := e.cache.IncrementCounter(ctx, tenantID, "reanalysis:"+caseID, reanalysisWindow)
	if err != nil {
		// Cache trouble must not block reanalysis.
		e.logger.Warn("reanalysis counter unavailable", "case_id", caseID, "error", err)
		return nil
	}
	if count > reanalysisBudget {
		return fmt.Errorf("case %s: %w", caseID, domain.ErrRateLimited)
	}
	return nil
}

func (e *Engine) refreshCache(ctx context.Context, tenantID string, c *domain.DisputeCase) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetCase(ctx, tenantID, c.ID, c, caseCacheTTL); err != nil {
		e.logger.Warn("failed to refresh case cache", "case_id", c.ID, "error", err)
	}
}

// rescoredEvent is the payload published on the rescored topic.
type rescoredEvent struct {
	CaseID         string                `json:"caseId"`
	PreviousScore  int                   `json:"previousScore"`
	NewScore       int                   `json:"newScore"`
	Recommendation domain.Recommendation `json:"recommendation"`
	RescoredAt     time.Time             `json:"rescoredAt"`
}

func (e *Engine) publishRescored(ctx context.Context, tenantID string, c *domain.DisputeCase, previousScore int) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(rescoredEvent{
		CaseID:         c.ID,
		PreviousScore:  previousScore,
		NewScore:       c.RiskScore,
		Recommendation: c.Recommendation,
		RescoredAt:     c.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, tenantID, domain.TopicCaseRescored, payload); err != nil {
		e.logger.Warn("failed to publish rescored event", "case_id", c.ID, "error", err)
	}
}
