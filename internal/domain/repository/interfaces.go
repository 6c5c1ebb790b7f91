package repository

import (
	"context"
	"time"

	"PayPull/internal/domain/models"
)

// AccountSource lists the accounts to poll. Implementations own credential
// storage details; the polling core never touches schema discovery.
type AccountSource interface {
	ListActiveAccounts(ctx context.Context) ([]models.Account, error)
}

// TokenSource exchanges account credentials for a bearer token.
type TokenSource interface {
	Token(ctx context.Context, account models.Account) (string, error)
}

// ReportAPI fetches all raw records for a window, across pages.
type ReportAPI interface {
	FetchWindow(ctx context.Context, token string, account models.Account, w models.Window) ([]models.RawRecord, error)
}

// TransactionStore persists classified transactions idempotently on the
// (provider, provider_event_id) natural key.
type TransactionStore interface {
	Init(ctx context.Context) error
	LastEventTime(ctx context.Context, provider, accountID string) (*time.Time, error)
	InsertIgnore(ctx context.Context, t *models.Transaction) (bool, error)
	Recent(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher feeds newly inserted transactions to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, t *models.Transaction) error
	Close() error
}

// Metrics records ingestion observability counters.
type Metrics interface {
	RecordFetched(account string, n int)
	RecordInserted(account string, n int)
	RecordSkipped(account string, n int)
	RecordCapture(account string, amount float64)
	RecordError(kind string)
	RecordRateLimited(account string)
	RecordPixelHit()
	RecordLatency(op string, seconds float64)
}
