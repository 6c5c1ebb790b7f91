package usecase

import (
	"context"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
	"PayPull/pkg/logger"
)

// Event types stored on classified transactions.
const (
	EventTypeCapture    = "capture"
	EventTypeNonCapture = "non_capture"
)

// Ingestor classifies raw provider records and persists them idempotently.
type Ingestor struct {
	store     repository.TransactionStore
	publisher repository.Publisher
	metrics   repository.Metrics
	log       *logger.Logger

	provider    string
	recognized  map[string]struct{}
	captureCode string
}

// NewIngestor creates an Ingestor for one provider with its recognized
// event-code set and designated inflow code.
func NewIngestor(store repository.TransactionStore, pub repository.Publisher, m repository.Metrics, log *logger.Logger, provider string, recognizedCodes []string, captureCode string) *Ingestor {
	recognized := make(map[string]struct{}, len(recognizedCodes))
	for _, c := range recognizedCodes {
		recognized[c] = struct{}{}
	}
	return &Ingestor{
		store:       store,
		publisher:   pub,
		metrics:     m,
		log:         log,
		provider:    provider,
		recognized:  recognized,
		captureCode: captureCode,
	}
}

// Ingest classifies and persists the records of one account. Unusable
// records are dropped without failing the batch; insert conflicts count as
// skips, not errors. A store error aborts the batch with partial stats.
func (i *Ingestor) Ingest(ctx context.Context, account models.Account, records []models.RawRecord) (*models.IngestStats, error) {
	stats := &models.IngestStats{Fetched: len(records)}
	i.metrics.RecordFetched(account.ID, len(records))

	for idx := range records {
		t, ok := i.classify(account, &records[idx])
		if !ok {
			stats.Discarded++
			continue
		}

		if t.EventType == EventTypeCapture {
			stats.Captures++
			if amount, ok := records[idx].AmountValue(); ok {
				stats.CaptureTotal += amount
				i.metrics.RecordCapture(account.ID, amount)
			}
		} else {
			stats.NonCaptures++
		}

		inserted, err := i.store.InsertIgnore(ctx, t)
		if err != nil {
			return stats, err
		}
		if !inserted {
			stats.Skipped++
			i.metrics.RecordSkipped(account.ID, 1)
			continue
		}
		stats.Inserted++
		i.metrics.RecordInserted(account.ID, 1)

		if err := i.publisher.Publish(ctx, t); err != nil {
			// The row is durable; a feed failure must not fail the run.
			i.log.Warn("publish failed",
				logger.String("account", account.ID),
				logger.String("event_id", t.ProviderEventID),
				logger.Error(err))
		}
	}
	return stats, nil
}

// classify maps a raw record to a storable transaction. Records with an
// unrecognized code, or without a usable id or timestamp, are dropped.
func (i *Ingestor) classify(account models.Account, r *models.RawRecord) (*models.Transaction, bool) {
	code := r.EventCode()
	if _, ok := i.recognized[code]; !ok {
		return nil, false
	}
	id := r.EventID()
	if id == "" {
		return nil, false
	}
	occurredAt, ok := r.OccurredAt()
	if !ok {
		return nil, false
	}

	eventType := EventTypeNonCapture
	verified := false
	if code == i.captureCode {
		if amount, ok := r.AmountValue(); ok && amount > 0 {
			eventType = EventTypeCapture
			verified = true
		}
	}

	return &models.Transaction{
		AccountID:       account.ID,
		Provider:        i.provider,
		ProviderEventID: id,
		EventType:       eventType,
		Payload:         r.Raw,
		OccurredAt:      occurredAt,
		Verified:        verified,
	}, true
}
