package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FeedTransaction is the wire shape of one ledger entry arriving from the
// bank feed. ExternalID is the feed's own stable identifier and is the
// deduplication key.
type FeedTransaction struct {
	ExternalID  string          `json:"external_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
	Merchant    *string         `json:"merchant,omitempty"`
	AccountName *string         `json:"account_name,omitempty"`
	AccountID   *string         `json:"account_id,omitempty"`
	Category    *string         `json:"category,omitempty"`
}

// Validate checks the fields the ledger cannot accept a row without
func (t FeedTransaction) Validate() error {
	if t.ExternalID == "" {
		return fmt.Errorf("external_id is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	FeedTransaction *FeedTransaction
}

// ParseFeedTransaction parses the message value as a feed transaction
func (m *IncomingMessage) ParseFeedTransaction() error {
	var txn FeedTransaction
	if err := json.Unmarshal(m.Value, &txn); err != nil {
		return err
	}
	if err := txn.Validate(); err != nil {
		return err
	}
	m.FeedTransaction = &txn
	return nil
}
