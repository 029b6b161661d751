package scoring

import (
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// KeyFactors lists the positive signals for a case, category-aware.
// Output order is fixed so repeated derivation is stable.
func KeyFactors(c *domain.DisputeCase) []string {
	f := Extract(c)
	var factors []string

	if f.CreditScore > 700 {
		factors = append(factors, "Excellent customer credit score")
	}
	if f.PreviousDisputes == 0 {
		factors = append(factors, "No dispute history records")
	}
	if f.EvidenceCount > 1 {
		factors = append(factors, "Multiple evidence files provided")
	}
	if f.Amount < 500 {
		factors = append(factors, "Small dispute amount")
	}

	switch f.Category {
	case domain.CategoryMerchandise, domain.CategoryProcessing:
		switch {
		case f.TotalLinkedOrders >= 3:
			factors = append(factors, fmt.Sprintf("Loyal customer with %d previous successful orders", f.TotalLinkedOrders))
		case f.TotalLinkedOrders >= 1:
			factors = append(factors, fmt.Sprintf("Returning customer with %d previous successful orders", f.TotalLinkedOrders))
		}
		if f.SameCardOrders > 0 {
			factors = append(factors, fmt.Sprintf("Same payment card used in %d previous orders", f.SameCardOrders))
		}
		if f.SameAddressOrders > 0 {
			factors = append(factors, fmt.Sprintf("Same shipping address used in %d previous orders", f.SameAddressOrders))
		}
		if f.ItemDelivered == domain.FlagYes {
			factors = append(factors, "Item was delivered - supports customer claim")
		}
		if f.ItemShipped == domain.FlagYes {
			factors = append(factors, "Item was shipped - merchant fulfilled obligation")
		}
	case domain.CategoryFraud:
		// For fraud claims, only the absence of linkage is exculpatory.
		if f.TotalLinkedOrders == 0 {
			factors = append(factors, "No transaction history links - consistent with stolen card/identity theft")
		}
	}

	if f.DisputeRate < 2 {
		factors = append(factors, "Low customer dispute rate")
	}

	return factors
}

// WarningFlags lists the negative signals for a case, category-aware.
func WarningFlags(c *domain.DisputeCase) []string {
	f := Extract(c)
	var flags []string

	if f.PreviousDisputes > 2 {
		flags = append(flags, "Multiple dispute history")
	}
	if c.RiskScore > 70 {
		flags = append(flags, "High risk score")
	}
	if f.EvidenceCount == 0 {
		flags = append(flags, "Lack of supporting evidence")
	}
	if f.Amount > 2000 {
		flags = append(flags, "Large transaction amount")
	}
	if f.DisputeRate > 5 {
		flags = append(flags, "High customer dispute rate (>5%)")
	}

	switch f.Category {
	case domain.CategoryFraud:
		if f.SameCardOrders >= 1 {
			flags = append(flags, fmt.Sprintf("Card used in %d previous orders - potential abusive chargeback", f.SameCardOrders))
		}
		if f.SameAddressOrders >= 1 {
			flags = append(flags, fmt.Sprintf("Address used in %d previous orders - potential abusive chargeback", f.SameAddressOrders))
		}
		if f.SameIPOrders >= 1 {
			flags = append(flags, fmt.Sprintf("IP used in %d previous orders - potential abusive chargeback", f.SameIPOrders))
		}
		if f.SameDeviceOrders >= 1 {
			flags = append(flags, fmt.Sprintf("Device used in %d previous orders - potential abusive chargeback", f.SameDeviceOrders))
		}
		if f.ItemDelivered == domain.FlagYes {
			flags = append(flags, "Item delivered - disputing received goods")
		}
	case domain.CategoryMerchandise, domain.CategoryProcessing:
		if f.TotalLinkedOrders == 0 {
			flags = append(flags, "New customer with no order history - higher risk")
		}
	}

	if f.LinkedCustomersDisputeRate > 4 {
		flags = append(flags, "High-risk customer network")
	}
	if f.PreviousDisputes > 0 && float64(f.DisputesWon)/float64(f.PreviousDisputes) > 0.6 {
		flags = append(flags, "High dispute win rate (potential abuse)")
	}

	return flags
}

// Analyze is the non-interactive re-derivation pass: it recomputes the
// narrative, key factors, and warning flags for a case but leaves the
// persisted risk score, recommendation, and confidence untouched.
func Analyze(c *domain.DisputeCase, generatedAt time.Time) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		CaseID:         c.ID,
		RiskScore:      domain.ClampScore(c.RiskScore),
		Recommendation: c.Recommendation,
		Confidence:     domain.ClampScore(c.Confidence),
		Analysis:       RenderNarrative(c),
		KeyFactors:     KeyFactors(c),
		WarningFlags:   WarningFlags(c),
		GeneratedAt:    generatedAt,
	}
}

// Initial runs the first-pass aggregation for a freshly ingested case,
// populating its computed fields. Confidence starts at 75 and rises
// with distance from the review band's center, where the model has the
// least separation.
func Initial(c *domain.DisputeCase) {
	f := Extract(c)
	bd := Aggregate(f)

	c.RiskScore = bd.Total
	c.Recommendation = Recommend(bd.Total, c.Category)
	c.Confidence = initialConfidence(bd.Total)
	c.Analysis = RenderNarrative(c)
	c.Touch()
}

func initialConfidence(score int) int {
	distance := score - 50
	if distance < 0 {
		distance = -distance
	}
	conf := 75 + distance/3
	if conf > 95 {
		conf = 95
	}
	return conf
}
