// Package ingest lands bank feed transactions in the ledger.
package ingest

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Jerry-OC/mission-control/pkg/kafka"
	"github.com/Jerry-OC/mission-control/pkg/metrics"
	"github.com/Jerry-OC/mission-control/pkg/models"
	"github.com/Jerry-OC/mission-control/pkg/tracing"
)

// FeedStore persists transactions arriving from the feed.
type FeedStore interface {
	InsertFromFeed(ctx context.Context, txn models.Transaction) (bool, error)
}

// ExclusionRuleStore lists the exclusion rules to sweep new rows with.
type ExclusionRuleStore interface {
	List(ctx context.Context) ([]models.ExclusionRule, error)
}

// ExclusionEngine bulk-applies exclusion rules to the uncoded ledger.
type ExclusionEngine interface {
	ApplyExclusionRules(ctx context.Context, rules []models.ExclusionRule) (int64, error)
}

// Ingestor turns feed messages into uncoded ledger rows. Inserts are
// deduplicated on the feed's external ID, so the handler is safe under
// at-least-once delivery.
type Ingestor struct {
	store  FeedStore
	rules  ExclusionRuleStore
	engine ExclusionEngine
	logger ectologger.Logger
}

// NewIngestor creates a new feed ingestor
func NewIngestor(store FeedStore, rules ExclusionRuleStore, engine ExclusionEngine, logger ectologger.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		rules:  rules,
		engine: engine,
		logger: logger,
	}
}

// Handle processes one feed message. After a new row lands, the exclusion
// rules are re-applied as a best-effort sweep; a sweep failure is logged and
// swallowed so it never blocks the feed.
func (i *Ingestor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.Ingestor.Handle")
	defer span.End()

	feed := msg.FeedTransaction
	log := i.logger.WithContext(ctx).WithFields(map[string]any{
		"external_id": feed.ExternalID,
	})

	externalID := feed.ExternalID
	created, err := i.store.InsertFromFeed(ctx, models.Transaction{
		Date:        feed.Date,
		Amount:      feed.Amount,
		Description: feed.Description,
		Merchant:    feed.Merchant,
		AccountName: feed.AccountName,
		AccountID:   feed.AccountID,
		Category:    feed.Category,
		ExternalID:  &externalID,
	})
	if err != nil {
		metrics.FeedTransactionsIngestedTotal.WithLabelValues("error").Inc()
		return err
	}
	if !created {
		metrics.FeedTransactionsIngestedTotal.WithLabelValues("duplicate").Inc()
		log.Debugf("Feed transaction already ingested")
		return nil
	}

	metrics.FeedTransactionsIngestedTotal.WithLabelValues("created").Inc()
	log.Info("Ingested feed transaction")

	i.sweepExclusions(ctx)
	return nil
}

func (i *Ingestor) sweepExclusions(ctx context.Context) {
	rules, err := i.rules.List(ctx)
	if err != nil {
		i.logger.WithContext(ctx).WithError(err).Warn("Skipping exclusion sweep, could not list rules")
		return
	}
	if len(rules) == 0 {
		return
	}

	if _, err := i.engine.ApplyExclusionRules(ctx, rules); err != nil {
		i.logger.WithContext(ctx).WithError(err).Warn("Exclusion sweep failed")
	}
}
