// Package rescore implements feedback-driven case reanalysis. A
// Rescorer takes the analyst's free-text feedback plus a case snapshot
// and produces an adjusted risk tuple. Two implementations exist: a
// remote HTTP collaborator and a deterministic local engine, with a
// failover wrapper that falls back to local when the remote is
// unreachable.
package rescore

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// adjustment is one keyword rule of the local engine. Match is a
// predicate over the lowercased feedback text; every matching rule's
// delta applies, so mixed feedback nets out.
type adjustment struct {
	label string
	match func(text string) bool
	delta int
}

func anyOf(words ...string) func(string) bool {
	return func(text string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
}

func allOf(words ...string) func(string) bool {
	return func(text string) bool {
		for _, w := range words {
			if !strings.Contains(text, w) {
				return false
			}
		}
		return true
	}
}

// adjustments is ordered: the rendered adjustment summary lists rules
// in this sequence. Deltas are cumulative.
var adjustments = []adjustment{
	{"loyal or good customer noted", anyOf("loyal", "good customer"), -15},
	{"strong evidence cited", allOf("evidence", "strong"), -10},
	{"transaction considered legitimate", anyOf("legitimate", "valid"), -12},
	{"approval leaning", anyOf("approve", "favor"), -8},
	{"suspicion raised", anyOf("suspicious", "doubt"), 15},
	{"fraud or abuse indicated", anyOf("fraud", "abuse"), 20},
	{"rejection leaning", anyOf("reject", "deny"), 12},
	{"high risk emphasized", allOf("risk", "high"), 10},
}

// acknowledgment themes, rendered in fixed checklist order so repeated
// reanalysis of the same feedback produces identical text.
var acknowledgmentThemes = []struct {
	line  string
	match func(string) bool
}{
	{"Customer relationship and history considered", anyOf("customer", "loyal")},
	{"Evidence and documentation reviewed", anyOf("evidence", "document", "proof")},
	{"Merchant-side context incorporated", anyOf("merchant", "seller", "vendor")},
	{"Fraud and abuse signals re-weighted", anyOf("fraud", "suspicious", "abuse")},
	{"Approval guidance applied", anyOf("approve", "accept")},
	{"Rejection guidance applied", anyOf("reject", "deny", "decline")},
	{"Flagged for further investigation", anyOf("investigate", "review", "unclear")},
}

// Local is the deterministic fallback rescorer. It adjusts the
// persisted score by keyword-matched deltas, clamps to [5,95], and
// re-resolves the recommendation for the shifted score.
type Local struct{}

// NewLocal creates the local rescorer.
func NewLocal() *Local { return &Local{} }

func (l *Local) Name() string { return "local" }

// Rescore applies the keyword adjustment table to the case snapshot.
// It never fails on well-formed input; the only error is a missing
// snapshot.
func (l *Local) Rescore(_ context.Context, req domain.RescoreRequest) (*domain.RescoreResult, error) {
	c := req.CaseSnapshot
	if c == nil {
		return nil, fmt.Errorf("rescore case %s: %w", req.CaseID, domain.ErrInvalidInput)
	}

	text := strings.ToLower(req.FeedbackText)

	score := c.RiskScore
	var applied []adjustment
	for _, adj := range adjustments {
		if adj.match(text) {
			score += adj.delta
			applied = append(applied, adj)
		}
	}
	score = clampTo(score, 5, 95)

	result := &domain.RescoreResult{
		RiskScore:      score,
		Recommendation: scoring.Recommend(score, c.Category),
		Confidence:     clampTo(c.Confidence+5, 75, 95),
		Analysis:       renderReanalysis(c, req.FeedbackText, text, score, applied),
		KeyFactors:     scoring.KeyFactors(c),
		WarningFlags:   scoring.WarningFlags(c),
	}
	return result, nil
}

// renderReanalysis produces the updated narrative: the acknowledgment
// checklist, the applied adjustments, and the shifted assessment.
func renderReanalysis(c *domain.DisputeCase, feedback, lowered string, score int, applied []adjustment) string {
	var b strings.Builder

	b.WriteString("UPDATED ANALYSIS (incorporating analyst feedback)\n")
	fmt.Fprintf(&b, "\nAnalyst Feedback: %q\n", strings.TrimSpace(feedback))

	b.WriteString("\nFEEDBACK ACKNOWLEDGMENT\n")
	acknowledged := false
	for _, theme := range acknowledgmentThemes {
		if theme.match(lowered) {
			fmt.Fprintf(&b, "   [x] %s\n", theme.line)
			acknowledged = true
		}
	}
	if !acknowledged {
		b.WriteString("   [x] General analyst guidance incorporated\n")
	}

	b.WriteString("\nSCORE ADJUSTMENT\n")
	fmt.Fprintf(&b, "   - Previous Risk Score: %d/100\n", c.RiskScore)
	for _, adj := range applied {
		fmt.Fprintf(&b, "   - %+d: %s\n", adj.delta, adj.label)
	}
	fmt.Fprintf(&b, "   - Updated Risk Score: %d/100\n", score)
	fmt.Fprintf(&b, "   - Risk Level: %s\n", scoring.RiskLevel(score))

	b.WriteString("\n")
	b.WriteString(scoring.RenderNarrative(c))

	return b.String()
}

func clampTo(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
