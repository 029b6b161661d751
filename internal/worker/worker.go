// Package worker provides async case processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
)

const warmCacheTTL = 5 * time.Minute

// Worker precomputes the risk narrative for freshly ingested cases off
// the request path. It subscribes to the ingested topic, scores cases
// that arrived unscored, evaluates flag rules, persists the result,
// and warms the read cache.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	cache  domain.Cache
	engine *rules.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via a
	// global subscription)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker. cache and engine may be nil.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *rules.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing ingested cases for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicCaseIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicCaseIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processCase(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicCaseIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processCase(ctx, msg.TenantID, msg)
}

// CaseMessage is the message payload published on case ingestion.
type CaseMessage struct {
	CaseID   string `json:"caseId"`
	TenantID string `json:"tenantId"`
	TraceID  string `json:"traceId,omitempty"`
}

// processCase loads an ingested case, scores it if ingestion deferred
// that step, attaches flag-rule warnings, and persists the result.
func (w *Worker) processCase(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var caseMsg CaseMessage
	if err := json.Unmarshal(msg.Payload, &caseMsg); err != nil {
		slog.Error("failed to parse case message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if caseMsg.TenantID != "" {
		tenantID = caseMsg.TenantID
	}

	traceID := caseMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing case",
		"case_id", caseMsg.CaseID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	c, err := w.repo.GetCase(ctx, tenantID, caseMsg.CaseID)
	if err != nil {
		slog.Error("failed to load ingested case",
			"case_id", caseMsg.CaseID,
			"error", err,
		)
		return err
	}

	// A recorded human decision closes the case; late deliveries and
	// redeliveries must not reopen it.
	if c.Closed() {
		slog.Debug("skipping closed case",
			"case_id", c.ID,
			"tenant_id", tenantID,
		)
		return nil
	}

	updated := c.Clone()

	// Ingestion may defer the narrative to this worker. Score only
	// when the case arrived without one so a redelivery never
	// overwrites a feedback-adjusted score.
	scored := updated.Analysis == ""
	if scored {
		scoring.Initial(updated)
	}

	// Flag-rule matches are folded into the freshly rendered narrative.
	// A redelivered case keeps its stored narrative so the section is
	// never appended twice.
	var flags []string
	if scored && w.engine != nil && w.engine.RulesCount() > 0 {
		flags, err = w.engine.Flags(ctx, updated)
		if err != nil {
			slog.Error("flag rule evaluation failed",
				"case_id", updated.ID,
				"error", err,
			)
		} else {
			updated.Analysis = scoring.AppendRuleFlags(updated.Analysis, flags)
		}
	}

	if err := w.repo.UpdateCase(ctx, tenantID, updated); err != nil {
		slog.Error("failed to persist scored case",
			"case_id", updated.ID,
			"error", err,
		)
		return err
	}

	if w.cache != nil {
		if err := w.cache.SetCase(ctx, tenantID, updated.ID, updated, warmCacheTTL); err != nil {
			slog.Warn("failed to warm case cache",
				"case_id", updated.ID,
				"error", err,
			)
		}
	}

	slog.Info("case processed",
		"case_id", updated.ID,
		"tenant_id", tenantID,
		"risk_score", updated.RiskScore,
		"recommendation", updated.Recommendation,
		"flag_count", len(flags),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
