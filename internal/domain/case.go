package domain

import (
	"time"
)

// Category classifies a dispute by the cardholder's claim.
// It determines which legitimacy scoring strategy and which
// recommendation band applies.
type Category string

const (
	CategoryFraud       Category = "FRAUD_UNAUTHORIZED"
	CategoryMerchandise Category = "MERCHANT_MERCHANDISE"
	CategoryProcessing  Category = "PROCESSING_ISSUES"

	// CategoryUnknown is any unrecognized or absent category.
	// Scoring falls back to a neutral path rather than failing.
	CategoryUnknown Category = ""
)

// Known returns true for the three recognized dispute categories.
func (c Category) Known() bool {
	switch c {
	case CategoryFraud, CategoryMerchandise, CategoryProcessing:
		return true
	}
	return false
}

// Recommendation is the automated action suggested for a case.
type Recommendation string

const (
	RecommendApprove               Recommendation = "approve"
	RecommendReject                Recommendation = "reject"
	RecommendReview                Recommendation = "review"
	RecommendMerchantInvestigation Recommendation = "merchant_investigation"
)

// Human decision values. A recorded decision closes the case;
// no automated mutation happens after that point.
const (
	DecisionApprove        = "approve"
	DecisionReject         = "reject"
	DecisionInvestigate    = "investigate"
	DecisionSendToMerchant = "send_to_merchant"
)

// Case lifecycle status tags.
const (
	StatusPendingReview         = "pending_risk_review"
	StatusAnalyzing             = "internal_analyzing"
	StatusMerchantInvestigation = "merchant_investigation"
	StatusRepresentmentRaised   = "representment_raised"
	StatusClosed                = "admitted_closed"
)

// Fulfillment flag values. Missing flags are normalized to FlagUnknown
// at the ingestion boundary so scoring never sees an empty string.
const (
	FlagYes     = "Y"
	FlagNo      = "N"
	FlagUnknown = "N/A"
)

// Transaction describes the disputed payment and its linkage to prior
// successful orders. All linkage counts default to 0 when absent from
// the wire payload; that is a documented default, not an error.
type Transaction struct {
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	MerchantName     string    `json:"merchantName"`
	MerchantCategory string    `json:"merchantCategory"`
	Timestamp        time.Time `json:"transactionDate"`
	Location         string    `json:"location,omitempty"`
	CardLast4        string    `json:"cardLast4,omitempty"`

	// Linked-order counts: prior successful orders sharing the same
	// payment card, shipping address, network address, or device.
	SameCardOrders    int `json:"sameCardSuccessOrders"`
	SameAddressOrders int `json:"sameAddressSuccessOrders"`
	SameIPOrders      int `json:"sameIpSuccessOrders"`
	SameDeviceOrders  int `json:"sameDeviceSuccessOrders"`

	// Fulfillment flags: "Y", "N", or "N/A".
	ItemShipped   string `json:"itemShipped"`
	ItemDelivered string `json:"itemDelivered"`
	DigitalGoods  string `json:"digitalGoods"`
}

// Customer describes the disputing cardholder.
type Customer struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	CreditScore   int    `json:"creditScore"`
	CustomerSince string `json:"customerSince,omitempty"`

	PreviousDisputes int `json:"previousDisputes"`
	DisputesWon      int `json:"disputeCustomerWon"`

	// DisputeRate is the customer's disputes as a percentage of total
	// purchases (0-100).
	DisputeRate float64 `json:"disputePercentage"`

	// Linked-customer cohort signals.
	LinkedCustomers            int     `json:"linkedCustomers"`
	LinkedCustomersDisputeRate float64 `json:"linkedCustomersDisputeRate"`
}

// Evidence is a single attachment supporting a case.
type Evidence struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // receipt, communication, authorization, other
	FileName    string    `json:"fileName"`
	UploadedAt  time.Time `json:"uploadDate"`
	Description string    `json:"description,omitempty"`
}

// DisputeCase is the unit of work: one chargeback case under review.
type DisputeCase struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	CaseNumber string `json:"caseNumber"`

	Transaction   Transaction `json:"transaction"`
	Customer      Customer    `json:"customer"`
	DisputeReason string      `json:"disputeReason"`
	Category      Category    `json:"category,omitempty"`
	ReasonCode    string      `json:"reasonCode,omitempty"`
	CardNetwork   string      `json:"cardNetwork,omitempty"`

	// Evidence may be empty or absent; treated as zero evidence.
	Evidence []Evidence `json:"evidence,omitempty"`

	// Computed fields. RiskScore and Confidence are always clamped
	// to [0,100].
	RiskScore      int            `json:"riskScore"`
	Recommendation Recommendation `json:"aiRecommendation"`
	Confidence     int            `json:"aiConfidence"`
	Analysis       string         `json:"aiAnalysis"`

	HumanDecision   string `json:"humanDecision,omitempty"`
	AnalystFeedback string `json:"analystFeedback,omitempty"`
	Status          string `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Closed reports whether a terminal human decision has been recorded.
func (c *DisputeCase) Closed() bool {
	return c.HumanDecision != ""
}

// Touch refreshes UpdatedAt. Must be called on every mutation of
// RiskScore, Recommendation, Status, or HumanDecision.
func (c *DisputeCase) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy. Updates are applied by full-record
// replacement, never in-place field mutation.
func (c *DisputeCase) Clone() *DisputeCase {
	dup := *c
	if c.Evidence != nil {
		dup.Evidence = make([]Evidence, len(c.Evidence))
		copy(dup.Evidence, c.Evidence)
	}
	return &dup
}

// ClampScore bounds a risk score or confidence value to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CaseRequest is the API payload for case ingestion. Numeric fields
// missing from the wire payload decode to their zero values; fulfillment
// flags are normalized in ToCase.
type CaseRequest struct {
	CaseNumber    string      `json:"caseNumber"`
	Transaction   Transaction `json:"transaction"`
	Customer      Customer    `json:"customer"`
	DisputeReason string      `json:"disputeReason"`
	Category      Category    `json:"category,omitempty"`
	ReasonCode    string      `json:"reasonCode,omitempty"`
	CardNetwork   string      `json:"cardNetwork,omitempty"`
	Evidence      []Evidence  `json:"evidence,omitempty"`
}

// ToCase converts an ingestion request to a DisputeCase, applying the
// single normalization step for optional fields: linkage counts floor
// at 0 and fulfillment flags default to "N/A". Scoring code never has
// to repeat this fallback logic.
func (r *CaseRequest) ToCase() *DisputeCase {
	now := time.Now().UTC()

	tx := r.Transaction
	tx.SameCardOrders = nonNegative(tx.SameCardOrders)
	tx.SameAddressOrders = nonNegative(tx.SameAddressOrders)
	tx.SameIPOrders = nonNegative(tx.SameIPOrders)
	tx.SameDeviceOrders = nonNegative(tx.SameDeviceOrders)
	tx.ItemShipped = normalizeFlag(tx.ItemShipped)
	tx.ItemDelivered = normalizeFlag(tx.ItemDelivered)
	tx.DigitalGoods = normalizeFlag(tx.DigitalGoods)

	cust := r.Customer
	cust.PreviousDisputes = nonNegative(cust.PreviousDisputes)
	cust.DisputesWon = nonNegative(cust.DisputesWon)
	if cust.DisputeRate < 0 {
		cust.DisputeRate = 0
	}
	if cust.LinkedCustomersDisputeRate < 0 {
		cust.LinkedCustomersDisputeRate = 0
	}

	return &DisputeCase{
		CaseNumber:    r.CaseNumber,
		Transaction:   tx,
		Customer:      cust,
		DisputeReason: r.DisputeReason,
		Category:      r.Category,
		ReasonCode:    r.ReasonCode,
		CardNetwork:   r.CardNetwork,
		Evidence:      r.Evidence,
		Status:        StatusPendingReview,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func normalizeFlag(v string) string {
	switch v {
	case FlagYes, FlagNo:
		return v
	default:
		return FlagUnknown
	}
}
