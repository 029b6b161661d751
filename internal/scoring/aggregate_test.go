package scoring

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestAmountScore(t *testing.T) {
	tests := []struct {
		amount float64
		want   int
	}{
		{0, 10},
		{99.99, 10},
		{100, 25},
		{499.99, 25},
		{500, 50},
		{1999.99, 50},
		{2000, 80},
		{250000, 80},
	}

	for _, tt := range tests {
		if got := AmountScore(tt.amount); got != tt.want {
			t.Errorf("AmountScore(%.2f) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestCustomerScore(t *testing.T) {
	tests := []struct {
		name     string
		credit   int
		disputes int
		want     int
	}{
		{"excellent credit clean history", 800, 0, 10},
		{"boundary 751 clean", 751, 0, 10},
		{"boundary 750 clean", 750, 0, 30},
		{"good credit clean", 700, 0, 30},
		{"boundary 650 clean", 650, 0, 70},
		{"poor credit clean", 500, 0, 70},
		{"excellent credit one dispute", 800, 1, 20},
		{"excellent credit penalty capped", 800, 10, 40},
		{"poor credit penalty capped", 500, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CustomerScore(tt.credit, tt.disputes); got != tt.want {
				t.Errorf("CustomerScore(%d, %d) = %d, want %d", tt.credit, tt.disputes, got, tt.want)
			}
		})
	}
}

func TestMerchantScore(t *testing.T) {
	tests := []struct {
		category string
		want     int
	}{
		{"Luxury Goods", 60},
		{"Online Services", 60},
		{"Travel Services", 60},
		{"Electronics", 35},
		{"Subscription Service", 35},
		{"Groceries", 20},
		{"", 20},
	}

	for _, tt := range tests {
		if got := MerchantScore(tt.category); got != tt.want {
			t.Errorf("MerchantScore(%q) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestReasonScore(t *testing.T) {
	tests := []struct {
		reason string
		want   int
	}{
		{"Fraudulent Transaction reported by cardholder", 80},
		{"Suspected Identity Theft", 80},
		{"Unauthorized transaction on statement", 50},
		{"Duplicate Charge for same order", 50},
		{"Item not as described", 30},
		{"", 30},
	}

	for _, tt := range tests {
		if got := ReasonScore(tt.reason); got != tt.want {
			t.Errorf("ReasonScore(%q) = %d, want %d", tt.reason, got, tt.want)
		}
	}
}

func TestEvidenceScore(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 80},
		{1, 50},
		{2, 20},
		{3, 20},
		{10, 20},
	}

	for _, tt := range tests {
		if got := EvidenceScore(tt.count); got != tt.want {
			t.Errorf("EvidenceScore(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestAbuseScore(t *testing.T) {
	// The /5 compression is part of the scoring contract.
	tests := []struct {
		rate float64
		want int
	}{
		{0, 1},
		{1.99, 1},
		{2, 7},
		{4.99, 7},
		{5, 12},
		{9.99, 12},
		{10, 16},
		{50, 16},
	}

	for _, tt := range tests {
		if got := AbuseScore(tt.rate); got != tt.want {
			t.Errorf("AbuseScore(%.2f) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestAggregateImpactsMatchTotal(t *testing.T) {
	f := FactorSet{
		Amount:            1200,
		MerchantCategory:  "Electronics",
		DisputeReason:     "Unauthorized transaction",
		Category:          domain.CategoryFraud,
		SameCardOrders:    3,
		SameIPOrders:      4,
		TotalLinkedOrders: 7,
		HasAnyLinks:       true,
		ItemDelivered:     domain.FlagYes,
		CreditScore:       720,
		PreviousDisputes:  1,
		DisputeRate:       3,
		EvidenceCount:     1,
	}

	bd := Aggregate(f)
	if len(bd.Factors) != 7 {
		t.Fatalf("expected 7 factors, got %d", len(bd.Factors))
	}

	// Factor scores feed the same pipeline as the standalone functions.
	wantScores := map[string]int{
		FactorAmount:     50,
		FactorCustomer:   40,
		FactorMerchant:   35,
		FactorReason:     50,
		FactorEvidence:   50,
		FactorLegitimacy: 95, // 80 base + 5 link bonus + 10 delivered
		FactorAbuse:      7,
	}
	for _, fs := range bd.Factors {
		if want, ok := wantScores[fs.Name]; !ok {
			t.Errorf("unexpected factor %q", fs.Name)
		} else if fs.Score != want {
			t.Errorf("%s: score %d, want %d", fs.Name, fs.Score, want)
		}
	}

	// 50*.1 + 40*.1 + 35*.05 + 50*.05 + 50*.1 + 95*.4 + 7*.2 = 57.65 -> 58
	if bd.Total != 58 {
		t.Errorf("total = %d, want 58", bd.Total)
	}
}

func TestAggregateTotalInRange(t *testing.T) {
	extremes := []FactorSet{
		{}, // everything zero / unknown
		{
			Amount:            50000,
			MerchantCategory:  "Luxury Goods",
			DisputeReason:     "Fraudulent Transaction",
			Category:          domain.CategoryFraud,
			SameCardOrders:    30,
			TotalLinkedOrders: 30,
			HasAnyLinks:       true,
			ItemDelivered:     domain.FlagYes,
			CreditScore:       300,
			PreviousDisputes:  20,
			DisputeRate:       40,
		},
	}

	for i, f := range extremes {
		bd := Aggregate(f)
		if bd.Total < 0 || bd.Total > 100 {
			t.Errorf("case %d: total %d out of range", i, bd.Total)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.4, 0},
		{0.5, 1},
		{1.5, 2},
		{2.49, 2},
		{59.65, 60},
	}

	for _, tt := range tests {
		if got := roundHalfUp(tt.in); got != tt.want {
			t.Errorf("roundHalfUp(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
