// Package scoring implements Harrier's deterministic risk scoring and
// recommendation engine.
//
// The engine is intentionally stateless: every function here is a pure
// computation over a case snapshot. Given identical inputs, scores,
// recommendations, and narratives are reproducible byte for byte, which
// is a correctness requirement for audit.
package scoring

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// FactorSet is the fully-normalized signal set derived from a case.
// Extraction is the single place where optional fields are resolved;
// scoring logic below never performs fallback reads.
type FactorSet struct {
	Amount           float64
	MerchantCategory string
	DisputeReason    string
	Category         domain.Category

	SameCardOrders    int
	SameAddressOrders int
	SameIPOrders      int
	SameDeviceOrders  int
	TotalLinkedOrders int
	HasAnyLinks       bool

	ItemShipped   string
	ItemDelivered string
	DigitalGoods  string

	CreditScore      int
	PreviousDisputes int
	DisputesWon      int

	// DisputeRate is the customer's dispute percentage (0-100).
	DisputeRate                float64
	LinkedCustomersDisputeRate float64

	EvidenceCount int
}

// Extract derives a FactorSet from a case. It is total: every field
// read has a documented default (0 for counts and rates, "N/A" for
// flags) and extraction never fails.
func Extract(c *domain.DisputeCase) FactorSet {
	f := FactorSet{
		Amount:           c.Transaction.Amount,
		MerchantCategory: c.Transaction.MerchantCategory,
		DisputeReason:    c.DisputeReason,
		Category:         c.Category,

		SameCardOrders:    floorZero(c.Transaction.SameCardOrders),
		SameAddressOrders: floorZero(c.Transaction.SameAddressOrders),
		SameIPOrders:      floorZero(c.Transaction.SameIPOrders),
		SameDeviceOrders:  floorZero(c.Transaction.SameDeviceOrders),

		ItemShipped:   defaultFlag(c.Transaction.ItemShipped),
		ItemDelivered: defaultFlag(c.Transaction.ItemDelivered),
		DigitalGoods:  defaultFlag(c.Transaction.DigitalGoods),

		CreditScore:      c.Customer.CreditScore,
		PreviousDisputes: floorZero(c.Customer.PreviousDisputes),
		DisputesWon:      floorZero(c.Customer.DisputesWon),

		DisputeRate:                floorZeroF(c.Customer.DisputeRate),
		LinkedCustomersDisputeRate: floorZeroF(c.Customer.LinkedCustomersDisputeRate),

		EvidenceCount: len(c.Evidence),
	}

	f.TotalLinkedOrders = f.SameCardOrders + f.SameAddressOrders + f.SameIPOrders + f.SameDeviceOrders
	f.HasAnyLinks = f.TotalLinkedOrders > 0

	return f
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func floorZeroF(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func defaultFlag(v string) string {
	switch v {
	case domain.FlagYes, domain.FlagNo:
		return v
	default:
		return domain.FlagUnknown
	}
}
