package scoring

import (
	"strings"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func merchandiseCase() *domain.DisputeCase {
	return &domain.DisputeCase{
		ID:            "case-001",
		TenantID:      "tenant-a",
		CaseNumber:    "CB-2026-0001",
		Category:      domain.CategoryMerchandise,
		DisputeReason: "Item not as described",
		Transaction: domain.Transaction{
			Amount:            349.99,
			Currency:          "USD",
			MerchantName:      "Acme Outfitters",
			MerchantCategory:  "Electronics",
			SameCardOrders:    2,
			SameAddressOrders: 1,
			ItemShipped:       domain.FlagYes,
			ItemDelivered:     domain.FlagYes,
			DigitalGoods:      domain.FlagNo,
		},
		Customer: domain.Customer{
			CreditScore:      720,
			PreviousDisputes: 1,
			DisputesWon:      0,
			DisputeRate:      1.5,
		},
		Evidence:       []domain.Evidence{{FileName: "receipt.pdf"}},
		RiskScore:      42,
		Recommendation: domain.RecommendMerchantInvestigation,
		Confidence:     80,
	}
}

func fraudCase() *domain.DisputeCase {
	return &domain.DisputeCase{
		ID:            "case-002",
		TenantID:      "tenant-a",
		CaseNumber:    "CB-2026-0002",
		Category:      domain.CategoryFraud,
		DisputeReason: "Fraudulent Transaction",
		Transaction: domain.Transaction{
			Amount:           2499.00,
			Currency:         "USD",
			MerchantName:     "Skyline Travel",
			MerchantCategory: "Travel Services",
			SameCardOrders:   6,
			SameIPOrders:     5,
			SameDeviceOrders: 4,
			ItemDelivered:    domain.FlagYes,
		},
		Customer: domain.Customer{
			CreditScore:      610,
			PreviousDisputes: 4,
			DisputesWon:      3,
			DisputeRate:      8,
		},
		RiskScore:      82,
		Recommendation: domain.RecommendReject,
		Confidence:     88,
	}
}

func TestRenderNarrativeDeterministic(t *testing.T) {
	for _, c := range []*domain.DisputeCase{merchandiseCase(), fraudCase()} {
		first := RenderNarrative(c)
		second := RenderNarrative(c)
		if first != second {
			t.Errorf("case %s: narratives differ across renders", c.ID)
		}
	}
}

func TestRenderNarrativeSections(t *testing.T) {
	text := RenderNarrative(merchandiseCase())

	wantSections := []string{
		"COMPREHENSIVE RISK ANALYSIS BREAKDOWN",
		"1. TRANSACTION AMOUNT (10% weight)",
		"2. CUSTOMER HISTORY (10% weight)",
		"3. MERCHANT CATEGORY (5% weight)",
		"4. DISPUTE REASON (5% weight)",
		"5. EVIDENCE COMPLETENESS (10% weight)",
		"6. TRANSACTION LEGITIMACY (40% weight)",
		"7. ABUSE PATTERNS (20% weight)",
		"FINAL RISK ASSESSMENT",
		"RECOMMENDATION RATIONALE",
	}
	for _, section := range wantSections {
		if !strings.Contains(text, section) {
			t.Errorf("narrative missing section %q", section)
		}
	}
}

func TestRenderNarrativeLoyaltyReading(t *testing.T) {
	text := RenderNarrative(merchandiseCase())

	if !strings.Contains(text, "LOYAL CUSTOMER - 3 linked orders") {
		t.Error("expected loyal-customer assessment for 3 linked orders")
	}
	if !strings.Contains(text, "Total Linked Orders: 3") {
		t.Error("expected total linked orders line")
	}
	if !strings.Contains(text, "MERCHANT INVESTIGATION") {
		t.Error("expected merchant investigation rationale")
	}
	if strings.Contains(text, "LIKELY GENUINE FRAUD") || strings.Contains(text, "LIKELY ABUSIVE CHARGEBACK") {
		t.Error("fraud assessments must not appear on a merchandise case")
	}
}

func TestRenderNarrativeFraudReading(t *testing.T) {
	text := RenderNarrative(fraudCase())

	if !strings.Contains(text, "LIKELY ABUSIVE CHARGEBACK") {
		t.Error("expected abusive-chargeback assessment for linked fraud claim")
	}
	if !strings.Contains(text, "High confidence: 15 total linked orders") {
		t.Error("expected high-confidence linkage line")
	}
	if !strings.Contains(text, "Risk Level: HIGH") {
		t.Error("expected HIGH risk level for score 82")
	}
	if !strings.Contains(text, "Persisted Risk Score: 82/100") {
		t.Error("expected persisted score line")
	}
}

func TestRenderNarrativeGenuineFraud(t *testing.T) {
	c := fraudCase()
	c.Transaction.SameCardOrders = 0
	c.Transaction.SameIPOrders = 0
	c.Transaction.SameDeviceOrders = 0

	text := RenderNarrative(c)
	if !strings.Contains(text, "LIKELY GENUINE FRAUD") {
		t.Error("expected genuine-fraud assessment when no linkage exists")
	}
}

func TestAppendRuleFlags(t *testing.T) {
	base := RenderNarrative(merchandiseCase())

	if got := AppendRuleFlags(base, nil); got != base {
		t.Error("expected unchanged narrative for empty match set")
	}

	got := AppendRuleFlags(base, []string{"Disputed amount above fast-track threshold"})
	if !strings.Contains(got, "FLAG RULE MATCHES") {
		t.Error("expected flag rule section header")
	}
	if !strings.Contains(got, "   - Disputed amount above fast-track threshold") {
		t.Error("expected flag entry under the section header")
	}
	if !strings.HasPrefix(got, base) {
		t.Error("expected flags appended after the narrative body")
	}
}
