package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/rescore"
)

// memRepo is a minimal in-memory repository for engine tests.
type memRepo struct {
	mu    sync.Mutex
	cases map[string]*domain.DisputeCase
}

func newMemRepo() *memRepo {
	return &memRepo{cases: make(map[string]*domain.DisputeCase)}
}

func (r *memRepo) key(tenantID, caseID string) string { return tenantID + "/" + caseID }

func (r *memRepo) SaveCase(_ context.Context, tenantID string, c *domain.DisputeCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[r.key(tenantID, c.ID)] = c.Clone()
	return nil
}

func (r *memRepo) GetCase(_ context.Context, tenantID, caseID string) (*domain.DisputeCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[r.key(tenantID, caseID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *memRepo) ListCases(_ context.Context, tenantID string, _ domain.CaseFilter) ([]*domain.DisputeCase, error) {
	return nil, nil
}

func (r *memRepo) UpdateCase(_ context.Context, tenantID string, c *domain.DisputeCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[r.key(tenantID, c.ID)]; !ok {
		return domain.ErrNotFound
	}
	r.cases[r.key(tenantID, c.ID)] = c.Clone()
	return nil
}

func (r *memRepo) GetCaseStats(context.Context, string) (*domain.CaseStats, error) {
	return &domain.CaseStats{}, nil
}

func (r *memRepo) SaveFlagRule(context.Context, string, *domain.FlagRule) error { return nil }
func (r *memRepo) GetFlagRule(context.Context, string, string) (*domain.FlagRule, error) {
	return nil, domain.ErrNotFound
}
func (r *memRepo) ListFlagRules(context.Context, string) ([]*domain.FlagRule, error) {
	return nil, nil
}
func (r *memRepo) DeleteFlagRule(context.Context, string, string) error { return nil }
func (r *memRepo) Ping(context.Context) error                          { return nil }
func (r *memRepo) Close() error                                        { return nil }

// blockingRescorer holds every call until released, to exercise the
// concurrent-submission guard.
type blockingRescorer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRescorer) Name() string { return "blocking" }

func (b *blockingRescorer) Rescore(_ context.Context, req domain.RescoreRequest) (*domain.RescoreResult, error) {
	b.entered <- struct{}{}
	<-b.release
	return &domain.RescoreResult{
		RiskScore:      req.CaseSnapshot.RiskScore,
		Recommendation: req.CaseSnapshot.Recommendation,
		Confidence:     80,
		Analysis:       "blocked",
	}, nil
}

func seedCase(t *testing.T, repo *memRepo, tenantID string) *domain.DisputeCase {
	t.Helper()
	c := &domain.DisputeCase{
		ID:            "case-1",
		TenantID:      tenantID,
		CaseNumber:    "CB-2026-0001",
		Category:      domain.CategoryFraud,
		DisputeReason: "Unauthorized transaction",
		Transaction:   domain.Transaction{Amount: 450},
		Customer:      domain.Customer{CreditScore: 700},
		RiskScore:     50,
		Recommendation: domain.RecommendReview,
		Confidence:     80,
		Status:         domain.StatusPendingReview,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := repo.SaveCase(context.Background(), tenantID, c); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return c
}

func TestSubmitAdjustsAndPersists(t *testing.T) {
	repo := newMemRepo()
	seedCase(t, repo, "tenant-a")

	engine := NewEngine(repo, nil, rescore.NewLocal(), nil, nil)

	updated, err := engine.Submit(context.Background(), "tenant-a", "case-1",
		"Loyal customer with strong evidence, please approve")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if updated.RiskScore != 17 {
		t.Errorf("risk score = %d, want 17", updated.RiskScore)
	}
	if updated.Recommendation != domain.RecommendApprove {
		t.Errorf("recommendation = %s, want approve", updated.Recommendation)
	}
	if updated.Confidence != 85 {
		t.Errorf("confidence = %d, want 85", updated.Confidence)
	}
	if updated.AnalystFeedback == "" {
		t.Error("analyst feedback not retained on the record")
	}
	if updated.Status != domain.StatusPendingReview {
		t.Errorf("status = %s, want pending_risk_review", updated.Status)
	}

	// Persisted record matches the returned one.
	stored, err := repo.GetCase(context.Background(), "tenant-a", "case-1")
	if err != nil {
		t.Fatalf("reload case: %v", err)
	}
	if stored.RiskScore != 17 || stored.AnalystFeedback != updated.AnalystFeedback {
		t.Errorf("persisted record diverges: %+v", stored)
	}
}

func TestSubmitEmptyFeedback(t *testing.T) {
	repo := newMemRepo()
	original := seedCase(t, repo, "tenant-a")

	engine := NewEngine(repo, nil, rescore.NewLocal(), nil, nil)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := engine.Submit(context.Background(), "tenant-a", "case-1", text)
		if !errors.Is(err, domain.ErrEmptyFeedback) {
			t.Errorf("feedback %q: expected ErrEmptyFeedback, got %v", text, err)
		}
	}

	// No state change.
	stored, _ := repo.GetCase(context.Background(), "tenant-a", "case-1")
	if stored.RiskScore != original.RiskScore || stored.AnalystFeedback != "" {
		t.Error("rejected feedback must not mutate the case")
	}
}

func TestSubmitUnknownCase(t *testing.T) {
	engine := NewEngine(newMemRepo(), nil, rescore.NewLocal(), nil, nil)

	_, err := engine.Submit(context.Background(), "tenant-a", "missing", "fraud")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitClosedCase(t *testing.T) {
	repo := newMemRepo()
	c := seedCase(t, repo, "tenant-a")
	c.HumanDecision = domain.DecisionApprove
	c.Status = domain.StatusClosed
	if err := repo.UpdateCase(context.Background(), "tenant-a", c); err != nil {
		t.Fatalf("close case: %v", err)
	}

	engine := NewEngine(repo, nil, rescore.NewLocal(), nil, nil)

	_, err := engine.Submit(context.Background(), "tenant-a", "case-1", "fraud")
	if !errors.Is(err, domain.ErrCaseClosed) {
		t.Errorf("expected ErrCaseClosed, got %v", err)
	}
}

func TestSubmitRejectsConcurrent(t *testing.T) {
	repo := newMemRepo()
	seedCase(t, repo, "tenant-a")

	blocker := &blockingRescorer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine := NewEngine(repo, nil, blocker, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Submit(context.Background(), "tenant-a", "case-1", "first submission")
		done <- err
	}()

	<-blocker.entered
	if !engine.Reanalyzing("tenant-a", "case-1") {
		t.Error("expected case to report re-analyzing while in flight")
	}

	_, err := engine.Submit(context.Background(), "tenant-a", "case-1", "second submission")
	if !errors.Is(err, domain.ErrReanalysisPending) {
		t.Errorf("expected ErrReanalysisPending, got %v", err)
	}

	close(blocker.release)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if engine.Reanalyzing("tenant-a", "case-1") {
		t.Error("case should be idle after completion")
	}
}

func TestSubmitTenantIsolation(t *testing.T) {
	repo := newMemRepo()
	seedCase(t, repo, "tenant-a")

	engine := NewEngine(repo, nil, rescore.NewLocal(), nil, nil)

	_, err := engine.Submit(context.Background(), "tenant-b", "case-1", "fraud")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant submit should be ErrNotFound, got %v", err)
	}
}
