package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleCase(id string, category domain.Category) *domain.DisputeCase {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.DisputeCase{
		ID:            id,
		CaseNumber:    "CB-2026-" + id,
		Category:      category,
		DisputeReason: "Unauthorized transaction",
		ReasonCode:    "10.4",
		CardNetwork:   "visa",
		Transaction: domain.Transaction{
			Amount:           1250.00,
			Currency:         "USD",
			MerchantName:     "Acme Outfitters",
			MerchantCategory: "Electronics",
			Timestamp:        now,
			SameCardOrders:   3,
			ItemShipped:      domain.FlagYes,
			ItemDelivered:    domain.FlagNo,
			DigitalGoods:     domain.FlagNo,
		},
		Customer: domain.Customer{
			ID:               "cust-1",
			CreditScore:      710,
			PreviousDisputes: 1,
			DisputeRate:      2.5,
		},
		Evidence: []domain.Evidence{
			{ID: "ev-1", Type: "receipt", FileName: "receipt.pdf", UploadedAt: now},
		},
		RiskScore:      48,
		Recommendation: domain.RecommendReview,
		Confidence:     78,
		Analysis:       "analysis text",
		Status:         domain.StatusPendingReview,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetCase", func(t *testing.T) {
		c := sampleCase("case-001", domain.CategoryFraud)
		if err := repo.SaveCase(ctx, tenantID, c); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}

		got, err := repo.GetCase(ctx, tenantID, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}

		if got.CaseNumber != c.CaseNumber {
			t.Errorf("case number = %s, want %s", got.CaseNumber, c.CaseNumber)
		}
		if got.Category != domain.CategoryFraud {
			t.Errorf("category = %s, want %s", got.Category, domain.CategoryFraud)
		}
		if got.Transaction.Amount != 1250.00 {
			t.Errorf("amount = %v, want 1250.00", got.Transaction.Amount)
		}
		if got.Transaction.SameCardOrders != 3 {
			t.Errorf("same card orders = %d, want 3", got.Transaction.SameCardOrders)
		}
		if got.Customer.CreditScore != 710 {
			t.Errorf("credit score = %d, want 710", got.Customer.CreditScore)
		}
		if len(got.Evidence) != 1 || got.Evidence[0].FileName != "receipt.pdf" {
			t.Errorf("evidence round trip broken: %+v", got.Evidence)
		}
		if got.RiskScore != 48 || got.Recommendation != domain.RecommendReview {
			t.Errorf("risk tuple = %d/%s, want 48/review", got.RiskScore, got.Recommendation)
		}
	})

	t.Run("GetCaseNotFound", func(t *testing.T) {
		_, err := repo.GetCase(ctx, tenantID, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetCase(ctx, "other-tenant", "case-001")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("cross-tenant read must be ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateCase", func(t *testing.T) {
		c, err := repo.GetCase(ctx, tenantID, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}

		c.RiskScore = 22
		c.Recommendation = domain.RecommendApprove
		c.AnalystFeedback = "loyal customer"
		c.Touch()

		if err := repo.UpdateCase(ctx, tenantID, c); err != nil {
			t.Fatalf("UpdateCase failed: %v", err)
		}

		got, _ := repo.GetCase(ctx, tenantID, "case-001")
		if got.RiskScore != 22 || got.Recommendation != domain.RecommendApprove {
			t.Errorf("update not persisted: %d/%s", got.RiskScore, got.Recommendation)
		}
		if got.AnalystFeedback != "loyal customer" {
			t.Errorf("analyst feedback = %q", got.AnalystFeedback)
		}
	})

	t.Run("UpdateMissingCase", func(t *testing.T) {
		c := sampleCase("ghost", domain.CategoryFraud)
		err := repo.UpdateCase(ctx, tenantID, c)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("EmptyTenantRejected", func(t *testing.T) {
		if err := repo.SaveCase(ctx, "", sampleCase("x", domain.CategoryFraud)); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetCase(ctx, "", "case-001"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestListCases(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	for i := 0; i < 5; i++ {
		c := sampleCase(fmt.Sprintf("case-%03d", i), domain.CategoryFraud)
		c.CreatedAt = c.CreatedAt.Add(time.Duration(i) * time.Minute)
		if err := repo.SaveCase(ctx, tenantID, c); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}
	}
	merch := sampleCase("case-merch", domain.CategoryMerchandise)
	merch.Status = domain.StatusMerchantInvestigation
	if err := repo.SaveCase(ctx, tenantID, merch); err != nil {
		t.Fatalf("SaveCase failed: %v", err)
	}

	t.Run("All", func(t *testing.T) {
		cases, err := repo.ListCases(ctx, tenantID, domain.CaseFilter{})
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(cases) != 6 {
			t.Errorf("expected 6 cases, got %d", len(cases))
		}
	})

	t.Run("NewestFirst", func(t *testing.T) {
		cases, _ := repo.ListCases(ctx, tenantID, domain.CaseFilter{Category: domain.CategoryFraud})
		if len(cases) != 5 {
			t.Fatalf("expected 5 fraud cases, got %d", len(cases))
		}
		if cases[0].ID != "case-004" {
			t.Errorf("first case = %s, want case-004", cases[0].ID)
		}
	})

	t.Run("StatusFilter", func(t *testing.T) {
		cases, _ := repo.ListCases(ctx, tenantID, domain.CaseFilter{Status: domain.StatusMerchantInvestigation})
		if len(cases) != 1 || cases[0].ID != "case-merch" {
			t.Errorf("status filter broken: %d cases", len(cases))
		}
	})

	t.Run("LimitAndOffset", func(t *testing.T) {
		page1, _ := repo.ListCases(ctx, tenantID, domain.CaseFilter{Limit: 2})
		page2, _ := repo.ListCases(ctx, tenantID, domain.CaseFilter{Limit: 2, Offset: 2})
		if len(page1) != 2 || len(page2) != 2 {
			t.Fatalf("pagination sizes wrong: %d, %d", len(page1), len(page2))
		}
		if page1[0].ID == page2[0].ID {
			t.Error("offset returned overlapping pages")
		}
	})

	t.Run("OtherTenantEmpty", func(t *testing.T) {
		cases, err := repo.ListCases(ctx, "other", domain.CaseFilter{})
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(cases) != 0 {
			t.Errorf("expected no cases for other tenant, got %d", len(cases))
		}
	})
}

func TestGetCaseStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	scores := []int{20, 40, 60}
	for i, score := range scores {
		c := sampleCase(fmt.Sprintf("case-%d", i), domain.CategoryFraud)
		c.RiskScore = score
		if i == 2 {
			c.Category = domain.CategoryMerchandise
			c.Recommendation = domain.RecommendMerchantInvestigation
			c.Status = domain.StatusMerchantInvestigation
		}
		if err := repo.SaveCase(ctx, tenantID, c); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}
	}

	stats, err := repo.GetCaseStats(ctx, tenantID)
	if err != nil {
		t.Fatalf("GetCaseStats failed: %v", err)
	}

	if stats.TotalCases != 3 {
		t.Errorf("total = %d, want 3", stats.TotalCases)
	}
	if stats.AverageRiskScore != 40 {
		t.Errorf("average = %v, want 40", stats.AverageRiskScore)
	}
	if stats.ByCategory[domain.CategoryFraud] != 2 {
		t.Errorf("fraud count = %d, want 2", stats.ByCategory[domain.CategoryFraud])
	}
	if stats.ByStatus[domain.StatusMerchantInvestigation] != 1 {
		t.Errorf("merchant investigation count = %d, want 1", stats.ByStatus[domain.StatusMerchantInvestigation])
	}
	if stats.ByRecommendation[domain.RecommendReview] != 2 {
		t.Errorf("review count = %d, want 2", stats.ByRecommendation[domain.RecommendReview])
	}
}

func TestFlagRuleCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	rule := &domain.FlagRule{
		ID:          "high-amount",
		Name:        "High Amount",
		Description: "Flags very large disputes",
		Version:     "1.0.0",
		Expression:  "amount > 2000.0",
		Flag:        "Large transaction amount",
		Enabled:     true,
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.SaveFlagRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveFlagRule failed: %v", err)
		}

		got, err := repo.GetFlagRule(ctx, tenantID, "high-amount")
		if err != nil {
			t.Fatalf("GetFlagRule failed: %v", err)
		}
		if got.Expression != rule.Expression || got.Flag != rule.Flag {
			t.Errorf("rule round trip broken: %+v", got)
		}
	})

	t.Run("UpsertSameVersion", func(t *testing.T) {
		rule.Flag = "Very large transaction amount"
		if err := repo.SaveFlagRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		got, _ := repo.GetFlagRule(ctx, tenantID, "high-amount")
		if got.Flag != "Very large transaction amount" {
			t.Errorf("upsert did not update flag: %q", got.Flag)
		}
	})

	t.Run("List", func(t *testing.T) {
		second := &domain.FlagRule{
			ID: "no-evidence", Name: "No Evidence", Version: "1.0.0",
			Expression: "evidence_count == 0", Flag: "Lack of supporting evidence", Enabled: true,
		}
		if err := repo.SaveFlagRule(ctx, tenantID, second); err != nil {
			t.Fatalf("SaveFlagRule failed: %v", err)
		}

		flagRules, err := repo.ListFlagRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListFlagRules failed: %v", err)
		}
		if len(flagRules) != 2 {
			t.Errorf("expected 2 rules, got %d", len(flagRules))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.DeleteFlagRule(ctx, tenantID, "high-amount"); err != nil {
			t.Fatalf("DeleteFlagRule failed: %v", err)
		}

		_, err := repo.GetFlagRule(ctx, tenantID, "high-amount")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := repo.DeleteFlagRule(ctx, tenantID, "never-existed")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		err := repo.SaveFlagRule(ctx, tenantID, &domain.FlagRule{Name: "no id"})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
