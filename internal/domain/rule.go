package domain

import "time"

// FlagRule is an analyst-defined warning-flag rule. The expression is a
// CEL predicate over case variables; when it evaluates true the rule's
// flag text is appended to the case's warning flags. Flag rules are
// advisory only and never mutate the risk score.
type FlagRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// Expression is a CEL expression returning bool, e.g.
	// `amount > 2000.0 && category == "FRAUD_UNAUTHORIZED"`.
	Expression string `json:"expression"`

	// Flag is the warning text emitted when the expression matches.
	Flag string `json:"flag"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
