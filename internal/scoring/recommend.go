package scoring

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// Recommendation bands.
const (
	approveBelow = 30 // score < 30 -> approve
	rejectAbove  = 70 // score > 70 -> reject

	// Merchandise disputes in [36,74] route to the merchant instead of
	// the general review queue. The band overlaps both the review band
	// and the reject band and takes precedence inside its range.
	merchantBandLow  = 36
	merchantBandHigh = 74
)

// Recommend maps a clamped risk score (and category) to an action.
// It is a total function: every score in [0,100] resolves.
func Recommend(score int, category domain.Category) domain.Recommendation {
	if category == domain.CategoryMerchandise && score >= merchantBandLow && score <= merchantBandHigh {
		return domain.RecommendMerchantInvestigation
	}
	switch {
	case score < approveBelow:
		return domain.RecommendApprove
	case score > rejectAbove:
		return domain.RecommendReject
	default:
		return domain.RecommendReview
	}
}

// RiskLevel maps a score to its display tier.
func RiskLevel(score int) string {
	switch {
	case score < 30:
		return "LOW"
	case score < 70:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}
