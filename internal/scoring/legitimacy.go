package scoring

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// CategoryStrategy scores transaction legitimacy for one dispute
// category. The meaning of linked-order history flips between
// strategies: prior orders are incriminating on a fraud claim but
// exculpatory on a merchandise or processing claim, so each category
// gets its own named strategy rather than inline conditionals.
type CategoryStrategy interface {
	// Name identifies the strategy in narratives and logs.
	Name() string

	// Score returns the legitimacy sub-score in [0,100].
	Score(f FactorSet) int
}

// StrategyFor returns the scoring strategy for a category. Unrecognized
// or absent categories get the neutral strategy, never an error.
func StrategyFor(cat domain.Category) CategoryStrategy {
	switch cat {
	case domain.CategoryFraud:
		return fraudStrategy{}
	case domain.CategoryMerchandise, domain.CategoryProcessing:
		return loyaltyStrategy{}
	default:
		return neutralStrategy{}
	}
}

// fraudStrategy scores FRAUD_UNAUTHORIZED disputes. Linkage to prior
// successful orders on a claimed-stolen card is itself suspicious: a
// genuine stolen-card victim has no history sharing the card, address,
// IP, or device with the disputed order.
type fraudStrategy struct{}

func (fraudStrategy) Name() string { return "fraud" }

func (fraudStrategy) Score(f FactorSet) int {
	if !f.HasAnyLinks {
		// Clean fraud signal: stolen card or identity theft.
		return 10
	}

	// Any linkage starts at 80; escalate with volume.
	score := 80
	switch {
	case f.TotalLinkedOrders >= 20:
		score += 15
	case f.TotalLinkedOrders >= 10:
		score += 10
	case f.TotalLinkedOrders >= 5:
		score += 5
	}

	// Fulfillment context, first match only.
	switch {
	case f.DigitalGoods == domain.FlagYes:
		score += 5
	case f.ItemDelivered == domain.FlagYes:
		score += 10
	case f.ItemShipped == domain.FlagYes:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// loyaltyStrategy scores MERCHANT_MERCHANDISE and PROCESSING_ISSUES
// disputes. Here the direction inverts: more linked history means a
// more trustworthy repeat customer and therefore lower risk.
type loyaltyStrategy struct{}

func (loyaltyStrategy) Name() string { return "loyalty" }

func (loyaltyStrategy) Score(f FactorSet) int {
	switch {
	case f.TotalLinkedOrders == 0:
		return 60 // new customer, no track record
	case f.TotalLinkedOrders <= 2:
		return 30 // some track record
	default:
		return 0 // loyal customer, minimal risk
	}
}

// neutralStrategy is the fallback for unrecognized categories.
type neutralStrategy struct{}

func (neutralStrategy) Name() string { return "neutral" }

func (neutralStrategy) Score(FactorSet) int { return 50 }

// LegitimacyScore is a convenience wrapper dispatching on the factor
// set's own category.
func LegitimacyScore(f FactorSet) int {
	return StrategyFor(f.Category).Score(f)
}
