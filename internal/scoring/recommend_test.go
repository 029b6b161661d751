package scoring

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestRecommendBands(t *testing.T) {
	tests := []struct {
		score int
		want  domain.Recommendation
	}{
		{0, domain.RecommendApprove},
		{29, domain.RecommendApprove},
		{30, domain.RecommendReview},
		{50, domain.RecommendReview},
		{70, domain.RecommendReview},
		{71, domain.RecommendReject},
		{100, domain.RecommendReject},
	}

	for _, tt := range tests {
		if got := Recommend(tt.score, domain.CategoryFraud); got != tt.want {
			t.Errorf("Recommend(%d, fraud) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendMerchantBand(t *testing.T) {
	// Merchandise cases in [36,74] route to the merchant, and the band
	// takes precedence over the reject threshold inside its range.
	tests := []struct {
		score int
		want  domain.Recommendation
	}{
		{29, domain.RecommendApprove},
		{35, domain.RecommendReview},
		{36, domain.RecommendMerchantInvestigation},
		{70, domain.RecommendMerchantInvestigation},
		{74, domain.RecommendMerchantInvestigation},
		{75, domain.RecommendReject},
	}

	for _, tt := range tests {
		if got := Recommend(tt.score, domain.CategoryMerchandise); got != tt.want {
			t.Errorf("Recommend(%d, merchandise) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendBandOnlyForMerchandise(t *testing.T) {
	for _, cat := range []domain.Category{domain.CategoryFraud, domain.CategoryProcessing, domain.CategoryUnknown} {
		if got := Recommend(50, cat); got != domain.RecommendReview {
			t.Errorf("Recommend(50, %s) = %s, want review", cat, got)
		}
		if got := Recommend(74, cat); got != domain.RecommendReject {
			t.Errorf("Recommend(74, %s) = %s, want reject", cat, got)
		}
	}
}

func TestRecommendTotal(t *testing.T) {
	// Every score in [0,100] must resolve for every category.
	categories := []domain.Category{
		domain.CategoryFraud,
		domain.CategoryMerchandise,
		domain.CategoryProcessing,
		domain.CategoryUnknown,
	}
	for _, cat := range categories {
		for score := 0; score <= 100; score++ {
			switch Recommend(score, cat) {
			case domain.RecommendApprove, domain.RecommendReject,
				domain.RecommendReview, domain.RecommendMerchantInvestigation:
			default:
				t.Fatalf("Recommend(%d, %s) returned unknown recommendation", score, cat)
			}
		}
	}
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "LOW"},
		{29, "LOW"},
		{30, "MEDIUM"},
		{69, "MEDIUM"},
		{70, "HIGH"},
		{100, "HIGH"},
	}

	for _, tt := range tests {
		if got := RiskLevel(tt.score); got != tt.want {
			t.Errorf("RiskLevel(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
