package domain

import (
	"context"
	"time"
)

// AnalysisResult is the re-derivable tuple the core exposes to the
// presentation layer for one case.
type AnalysisResult struct {
	CaseID         string         `json:"caseId"`
	RiskScore      int            `json:"riskScore"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     int            `json:"confidence"`
	Analysis       string         `json:"analysis"`
	KeyFactors     []string       `json:"keyFactors,omitempty"`
	WarningFlags   []string       `json:"warningFlags,omitempty"`

	// GeneratedAt is the only non-deterministic element; the narrative
	// body itself is byte-identical for identical inputs.
	GeneratedAt time.Time `json:"generatedAt"`
}

// FactorScore is one row of the weighted risk breakdown.
type FactorScore struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  int     `json:"score"`

	// Impact is round-half-up(Score * Weight).
	Impact int `json:"impact"`
}

// Breakdown is the itemized output of the weighted risk aggregator.
// The breakdown is advisory: the persisted risk score is set by
// ingestion or by feedback reanalysis, never by the aggregator.
type Breakdown struct {
	Factors []FactorScore `json:"factors"`
	Total   int           `json:"total"`
}

// RescoreRequest is the payload sent to the external re-scoring
// collaborator when an analyst submits feedback.
type RescoreRequest struct {
	CaseID       string       `json:"caseId"`
	FeedbackText string       `json:"feedbackText"`
	CaseSnapshot *DisputeCase `json:"caseSnapshot"`
}

// Rescorer recomputes a case's risk tuple in light of analyst
// feedback. Implementations must be side-effect free with respect to
// the case: persisting the result is the caller's job.
type Rescorer interface {
	Rescore(ctx context.Context, req RescoreRequest) (*RescoreResult, error)

	// Name identifies the implementation in logs and health output.
	Name() string
}

// RescoreResult is the collaborator's (or the local fallback's) answer.
type RescoreResult struct {
	RiskScore      int            `json:"riskScore"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     int            `json:"confidence"`
	Analysis       string         `json:"analysis"`
	KeyFactors     []string       `json:"keyFactors,omitempty"`
	WarningFlags   []string       `json:"warningFlags,omitempty"`
}
