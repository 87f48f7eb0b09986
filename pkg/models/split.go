package models

import "github.com/shopspring/decimal"

// SplitAllocation is one child of a transaction split. Every child must be
// fully coded; there is no partial disposition on a split.
type SplitAllocation struct {
	JobID      string          `json:"job_id"`
	CostCodeID string          `json:"cost_code_id"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      *string         `json:"notes,omitempty"`
}

// SplitRequest splits one transaction into at least two coded children whose
// amounts conserve the original amount.
type SplitRequest struct {
	OriginalID string            `json:"original_id"`
	Splits     []SplitAllocation `json:"splits"`
}
