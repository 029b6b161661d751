package scoring

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// RenderNarrative produces the itemized risk-analysis narrative for a
// case: one block per factor, a final assessment comparing the computed
// total with the persisted score, and a recommendation rationale.
//
// The output is deterministic: rendering the same case twice yields
// byte-identical text. Timestamps are supplied by the caller outside
// the narrative body.
func RenderNarrative(c *domain.DisputeCase) string {
	f := Extract(c)
	bd := Aggregate(f)

	var b strings.Builder
	b.WriteString("COMPREHENSIVE RISK ANALYSIS BREAKDOWN\n")

	for i, factor := range bd.Factors {
		fmt.Fprintf(&b, "\n%d. %s (%.0f%% weight)\n", i+1, strings.ToUpper(factor.Name), factor.Weight*100)
		renderFactorDetail(&b, factor, f)
		fmt.Fprintf(&b, "   - Factor Score: %d\n", factor.Score)
		fmt.Fprintf(&b, "   - Weighted Impact: %d points\n", factor.Impact)
	}

	b.WriteString("\nFINAL RISK ASSESSMENT\n")
	fmt.Fprintf(&b, "   - Calculated Total Score: %d/100\n", bd.Total)
	fmt.Fprintf(&b, "   - Persisted Risk Score: %d/100\n", c.RiskScore)
	fmt.Fprintf(&b, "   - Risk Level: %s - %s\n", RiskLevel(c.RiskScore), riskLevelBlurb(c.RiskScore))

	b.WriteString("\nRECOMMENDATION RATIONALE\n")
	fmt.Fprintf(&b, "   - %s\n", recommendationRationale(c.Recommendation))

	return b.String()
}

// AppendRuleFlags appends analyst flag-rule matches as a trailing
// section of a rendered narrative. An empty match set returns the
// narrative unchanged.
func AppendRuleFlags(analysis string, flags []string) string {
	if len(flags) == 0 {
		return analysis
	}

	var b strings.Builder
	b.WriteString(analysis)
	b.WriteString("\nFLAG RULE MATCHES\n")
	for _, flag := range flags {
		fmt.Fprintf(&b, "   - %s\n", flag)
	}
	return b.String()
}

func renderFactorDetail(b *strings.Builder, factor domain.FactorScore, f FactorSet) {
	switch factor.Name {
	case FactorAmount:
		fmt.Fprintf(b, "   - Amount: $%.2f\n", f.Amount)
		fmt.Fprintf(b, "   - Assessment: %s\n", amountAssessment(f.Amount))
	case FactorCustomer:
		fmt.Fprintf(b, "   - Credit Score: %d (%s)\n", f.CreditScore, creditAssessment(f.CreditScore))
		fmt.Fprintf(b, "   - Previous Disputes: %d (%s)\n", f.PreviousDisputes, disputeHistoryAssessment(f.PreviousDisputes))
	case FactorMerchant:
		fmt.Fprintf(b, "   - Merchant Category: %s\n", f.MerchantCategory)
		fmt.Fprintf(b, "   - Category Risk: %s\n", merchantAssessment(f.MerchantCategory))
	case FactorReason:
		fmt.Fprintf(b, "   - Dispute Reason: %s\n", f.DisputeReason)
		fmt.Fprintf(b, "   - Reason Risk: %s\n", reasonAssessment(factor.Score))
	case FactorEvidence:
		fmt.Fprintf(b, "   - Evidence Files: %d\n", f.EvidenceCount)
		fmt.Fprintf(b, "   - Assessment: %s\n", evidenceAssessment(f.EvidenceCount))
	case FactorLegitimacy:
		renderLegitimacyDetail(b, factor, f)
	case FactorAbuse:
		fmt.Fprintf(b, "   - Customer Dispute Rate: %.1f%%\n", f.DisputeRate)
		fmt.Fprintf(b, "   - Disputes Won by Customer: %d/%d\n", f.DisputesWon, f.PreviousDisputes)
		fmt.Fprintf(b, "   - Linked Customers Dispute Rate: %.1f%%\n", f.LinkedCustomersDisputeRate)
		fmt.Fprintf(b, "   - Assessment: %s\n", abuseAssessment(f.DisputeRate))
	}
}

// renderLegitimacyDetail expands the primary factor with its raw
// linkage inputs and the category-specific reading of them.
func renderLegitimacyDetail(b *strings.Builder, factor domain.FactorScore, f FactorSet) {
	fmt.Fprintf(b, "   - Same Card Success Orders: %d\n", f.SameCardOrders)
	fmt.Fprintf(b, "   - Same Address Success Orders: %d\n", f.SameAddressOrders)
	fmt.Fprintf(b, "   - Same IP Success Orders: %d\n", f.SameIPOrders)
	fmt.Fprintf(b, "   - Same Device Success Orders: %d\n", f.SameDeviceOrders)
	fmt.Fprintf(b, "   - Total Linked Orders: %d\n", f.TotalLinkedOrders)
	fmt.Fprintf(b, "   - Item Delivery Status: %s\n", f.ItemDelivered)

	switch f.Category {
	case domain.CategoryFraud:
		if f.HasAnyLinks {
			b.WriteString("   - Fraud Assessment: LIKELY ABUSIVE CHARGEBACK - prior transaction history found on a claimed-stolen card\n")
			if f.SameCardOrders > 0 {
				b.WriteString("     - Card previously used: evidence of cardholder involvement\n")
			}
			if f.SameAddressOrders > 0 {
				b.WriteString("     - Address previously used: evidence of cardholder involvement\n")
			}
			if f.SameIPOrders > 0 {
				b.WriteString("     - IP previously used: evidence of cardholder involvement\n")
			}
			if f.SameDeviceOrders > 0 {
				b.WriteString("     - Device previously used: evidence of cardholder involvement\n")
			}
			fmt.Fprintf(b, "     - %s: %d total linked orders\n", linkConfidence(f.TotalLinkedOrders), f.TotalLinkedOrders)
		} else {
			b.WriteString("   - Fraud Assessment: LIKELY GENUINE FRAUD - no transaction history (stolen card/identity theft pattern)\n")
		}
	case domain.CategoryMerchandise, domain.CategoryProcessing:
		switch {
		case f.TotalLinkedOrders == 0:
			b.WriteString("   - Customer Assessment: NEW CUSTOMER - no transaction history, moderate risk\n")
		case f.TotalLinkedOrders <= 2:
			fmt.Fprintf(b, "   - Customer Assessment: RETURNING CUSTOMER - %d linked orders, lower risk\n", f.TotalLinkedOrders)
		default:
			fmt.Fprintf(b, "   - Customer Assessment: LOYAL CUSTOMER - %d linked orders, minimal risk\n", f.TotalLinkedOrders)
		}
	default:
		b.WriteString("   - Assessment: category not recognized, neutral weighting applied\n")
	}
}

func linkConfidence(total int) string {
	switch {
	case total >= 20:
		return "Very high confidence"
	case total >= 10:
		return "High confidence"
	case total >= 5:
		return "Moderate confidence"
	default:
		return "Base confidence"
	}
}

func amountAssessment(amount float64) string {
	switch {
	case amount < 100:
		return "Low risk amount - small transactions carry lower fraud risk"
	case amount < 500:
		return "Moderate risk amount - standard transaction range"
	case amount < 2000:
		return "Elevated risk amount - higher value requires more scrutiny"
	default:
		return "High risk amount - large transactions are a common fraud target"
	}
}

func creditAssessment(creditScore int) string {
	switch {
	case creditScore > 750:
		return "excellent, low risk"
	case creditScore > 650:
		return "good, moderate risk"
	default:
		return "fair/poor, high risk"
	}
}

func disputeHistoryAssessment(previousDisputes int) string {
	switch {
	case previousDisputes == 0:
		return "no previous disputes"
	case previousDisputes <= 2:
		return "limited dispute history"
	default:
		return "multiple disputes, concerning pattern"
	}
}

func merchantAssessment(category string) string {
	switch {
	case highRiskMerchantCategories[category]:
		return "High risk industry - historically elevated chargeback rates"
	case mediumRiskMerchantCategories[category]:
		return "Medium risk industry - moderate chargeback rates"
	default:
		return "Low risk industry - stable sector with lower chargeback rates"
	}
}

func reasonAssessment(score int) string {
	switch score {
	case 80:
		return "High risk - fraud-related disputes require immediate investigation"
	case 50:
		return "Medium risk - common dispute type requiring verification"
	default:
		return "Low risk - service/product dispute, typically easier to resolve"
	}
}

func evidenceAssessment(count int) string {
	switch {
	case count == 0:
		return "No evidence provided - high risk, difficult to defend"
	case count == 1:
		return "Limited evidence - some support but may be insufficient"
	default:
		return "Adequate evidence - good documentation supports the case"
	}
}

func abuseAssessment(disputeRate float64) string {
	switch {
	case disputeRate > 5:
		return "High risk - excessive dispute rate suggests potential abuse"
	case disputeRate > 2:
		return "Moderate risk - elevated dispute rate requires monitoring"
	default:
		return "Normal behavior - dispute rate within acceptable range"
	}
}

func riskLevelBlurb(score int) string {
	switch {
	case score < 30:
		return "strong indicators support approving this dispute"
	case score < 70:
		return "mixed indicators require manual review"
	default:
		return "multiple risk factors suggest rejecting this dispute"
	}
}

func recommendationRationale(rec domain.Recommendation) string {
	switch rec {
	case domain.RecommendApprove:
		return "APPROVE - low risk factors and legitimate customer patterns support approval"
	case domain.RecommendReject:
		return "REJECT - high risk factors and concerning patterns suggest fraud"
	case domain.RecommendMerchantInvestigation:
		return "MERCHANT INVESTIGATION - merchandise dispute requires merchant-side verification"
	default:
		return "MANUAL REVIEW - mixed indicators require human judgment"
	}
}
