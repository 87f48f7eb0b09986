package models

import "time"

// CodingRule assigns a job/cost-code disposition to every uncoded transaction
// matching its pattern. (pattern_type, lower(pattern_value)) is unique;
// re-submitting the same pattern overwrites the disposition in place.
type CodingRule struct {
	ID           string    `json:"id" db:"id"`
	PatternType  string    `json:"pattern_type" db:"pattern_type"`
	PatternValue string    `json:"pattern_value" db:"pattern_value"`
	JobID        *string   `json:"job_id,omitempty" db:"job_id"`
	CostCodeID   *string   `json:"cost_code_id,omitempty" db:"cost_code_id"`
	Label        *string   `json:"label,omitempty" db:"label"`
	MatchCount   int       `json:"match_count" db:"match_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CodingRuleWithNames is the rule read model with joined display names.
type CodingRuleWithNames struct {
	CodingRule
	JobName        *string `json:"job_name,omitempty" db:"job_name"`
	CostCodeName   *string `json:"cost_code_name,omitempty" db:"cost_code_name"`
	CostCodeNumber *string `json:"cost_code_number,omitempty" db:"cost_code_number"`
}

// UpsertCodingRuleRequest creates or overwrites a coding rule.
type UpsertCodingRuleRequest struct {
	PatternType  string  `json:"pattern_type" validate:"required"`
	PatternValue string  `json:"pattern_value" validate:"required"`
	JobID        *string `json:"job_id,omitempty"`
	CostCodeID   *string `json:"cost_code_id,omitempty"`
	Label        *string `json:"label,omitempty"`
	ApplyNow     bool    `json:"apply_now"`
}
