package scoring

import (
	"math"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Factor weights. They sum to 1.00; legitimacy is the primary factor.
const (
	WeightAmount     = 0.10
	WeightCustomer   = 0.10
	WeightMerchant   = 0.05
	WeightReason     = 0.05
	WeightEvidence   = 0.10
	WeightLegitimacy = 0.40
	WeightAbuse      = 0.20
)

// Factor names as they appear in breakdowns and narratives.
const (
	FactorAmount     = "Transaction Amount"
	FactorCustomer   = "Customer History"
	FactorMerchant   = "Merchant Category"
	FactorReason     = "Dispute Reason"
	FactorEvidence   = "Evidence Completeness"
	FactorLegitimacy = "Transaction Legitimacy"
	FactorAbuse      = "Abuse Patterns"
)

// Merchant category risk sets.
var (
	highRiskMerchantCategories = map[string]bool{
		"Luxury Goods":    true,
		"Online Services": true,
		"Travel Services": true,
	}
	mediumRiskMerchantCategories = map[string]bool{
		"Electronics":          true,
		"Subscription Service": true,
	}
)

// Dispute reason phrase sets, matched as substrings of the reason text.
var (
	highRiskReasons   = []string{"Fraudulent Transaction", "Identity Theft"}
	mediumRiskReasons = []string{"Unauthorized transaction", "Duplicate Charge"}
)

// AmountScore buckets the transaction amount.
func AmountScore(amount float64) int {
	switch {
	case amount < 100:
		return 10
	case amount < 500:
		return 25
	case amount < 2000:
		return 50
	default:
		return 80
	}
}

// CustomerScore combines creditworthiness with dispute history.
func CustomerScore(creditScore, previousDisputes int) int {
	var score int
	switch {
	case creditScore > 750:
		score = 10
	case creditScore > 650:
		score = 30
	default:
		score = 70
	}

	penalty := previousDisputes * 10
	if penalty > 30 {
		penalty = 30
	}
	return score + penalty
}

// MerchantScore buckets the merchant category by historical
// chargeback rates.
func MerchantScore(category string) int {
	switch {
	case highRiskMerchantCategories[category]:
		return 60
	case mediumRiskMerchantCategories[category]:
		return 35
	default:
		return 20
	}
}

// ReasonScore buckets the dispute reason text.
func ReasonScore(reason string) int {
	for _, phrase := range highRiskReasons {
		if strings.Contains(reason, phrase) {
			return 80
		}
	}
	for _, phrase := range mediumRiskReasons {
		if strings.Contains(reason, phrase) {
			return 50
		}
	}
	return 30
}

// EvidenceScore rewards documentation: undefendable with none,
// adequate at two or more files.
func EvidenceScore(count int) int {
	switch {
	case count == 0:
		return 80
	case count == 1:
		return 50
	default:
		return 20
	}
}

// AbuseScore buckets the customer's dispute rate, then compresses the
// raw 80/60/35/5 table by dividing by 5 and rounding. The compression
// is a holdover from an earlier weighting scheme and is preserved
// exactly: changing it would silently shift every aggregate score.
func AbuseScore(disputeRate float64) int {
	var raw int
	switch {
	case disputeRate >= 10:
		raw = 80
	case disputeRate >= 5:
		raw = 60
	case disputeRate >= 2:
		raw = 35
	default:
		raw = 5
	}
	return roundHalfUp(float64(raw) / 5)
}

// Aggregate computes the full weighted breakdown for a factor set.
// The total is advisory: it never overwrites a case's persisted risk
// score, which is owned by ingestion and by feedback reanalysis.
func Aggregate(f FactorSet) domain.Breakdown {
	factors := []domain.FactorScore{
		{Name: FactorAmount, Weight: WeightAmount, Score: AmountScore(f.Amount)},
		{Name: FactorCustomer, Weight: WeightCustomer, Score: CustomerScore(f.CreditScore, f.PreviousDisputes)},
		{Name: FactorMerchant, Weight: WeightMerchant, Score: MerchantScore(f.MerchantCategory)},
		{Name: FactorReason, Weight: WeightReason, Score: ReasonScore(f.DisputeReason)},
		{Name: FactorEvidence, Weight: WeightEvidence, Score: EvidenceScore(f.EvidenceCount)},
		{Name: FactorLegitimacy, Weight: WeightLegitimacy, Score: LegitimacyScore(f)},
		{Name: FactorAbuse, Weight: WeightAbuse, Score: AbuseScore(f.DisputeRate)},
	}

	var weighted float64
	for i := range factors {
		factors[i].Impact = roundHalfUp(float64(factors[i].Score) * factors[i].Weight)
		weighted += float64(factors[i].Score) * factors[i].Weight
	}

	return domain.Breakdown{
		Factors: factors,
		Total:   domain.ClampScore(roundHalfUp(weighted)),
	}
}

// roundHalfUp is the single rounding convention used throughout the
// aggregator: .5 always rounds up.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
