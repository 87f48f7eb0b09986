package models

import "time"

// ExclusionRule has the same pattern shape as a CodingRule but carries no
// disposition; matching uncoded transactions are moved to excluded instead.
type ExclusionRule struct {
	ID           string    `json:"id" db:"id"`
	PatternType  string    `json:"pattern_type" db:"pattern_type"`
	PatternValue string    `json:"pattern_value" db:"pattern_value"`
	Label        *string   `json:"label,omitempty" db:"label"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UpsertExclusionRuleRequest creates or overwrites an exclusion rule.
// ApplyNow defaults to true when absent.
type UpsertExclusionRuleRequest struct {
	PatternType  string  `json:"pattern_type" validate:"required"`
	PatternValue string  `json:"pattern_value" validate:"required"`
	Label        *string `json:"label,omitempty"`
	ApplyNow     *bool   `json:"apply_now,omitempty"`
}
