package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction coding statuses. A transaction is never physically deleted;
// "excluded" is a soft state that keeps the row as an audit trail.
const (
	TransactionStatusUncoded  = "uncoded"  // awaiting a coding decision
	TransactionStatusCoded    = "coded"    // job and cost code assigned
	TransactionStatusExcluded = "excluded" // removed from the codable ledger
)

// Transaction is a single financial ledger entry.
//
// Invariant: job_id and cost_code_id are both set when status is coded and
// both null otherwise.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	Date        time.Time       `json:"date" db:"date"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description *string         `json:"description,omitempty" db:"description"`
	Merchant    *string         `json:"merchant,omitempty" db:"merchant"`
	AccountName *string         `json:"account_name,omitempty" db:"account_name"`
	AccountID   *string         `json:"account_id,omitempty" db:"account_id"`
	Category    *string         `json:"category,omitempty" db:"category"`
	Status      string          `json:"status" db:"status"`
	JobID       *string         `json:"job_id,omitempty" db:"job_id"`
	CostCodeID  *string         `json:"cost_code_id,omitempty" db:"cost_code_id"`
	Notes       *string         `json:"notes,omitempty" db:"notes"`
	ExternalID  *string         `json:"external_id,omitempty" db:"external_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is the transaction read model: the row plus joined display
// names for its job and cost code references.
type LedgerEntry struct {
	Transaction
	JobName        *string `json:"job_name,omitempty" db:"job_name"`
	CostCodeName   *string `json:"cost_code_name,omitempty" db:"cost_code_name"`
	CostCodeNumber *string `json:"cost_code_number,omitempty" db:"cost_code_number"`
}

// UpdateTransactionRequest is a manual edit of a single transaction. For
// job_id and cost_code_id an empty string clears the reference.
type UpdateTransactionRequest struct {
	JobID      *string `json:"job_id,omitempty"`
	CostCodeID *string `json:"cost_code_id,omitempty"`
	Status     *string `json:"status,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// IsEmpty reports whether the request carries no updates.
func (r UpdateTransactionRequest) IsEmpty() bool {
	return r.JobID == nil && r.CostCodeID == nil && r.Status == nil && r.Notes == nil
}
