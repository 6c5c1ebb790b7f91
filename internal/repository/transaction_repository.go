package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
)

const transactionsSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	account_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	provider_event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (provider, provider_event_id)
)`

// PostgresTransactionStore implements TransactionStore on Postgres.
// Inserts are idempotent on the (provider, provider_event_id) natural key.
type PostgresTransactionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionStore creates the Postgres-backed store.
func NewPostgresTransactionStore(pool *pgxpool.Pool) repository.TransactionStore {
	return &PostgresTransactionStore{pool: pool}
}

func (s *PostgresTransactionStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, transactionsSchema); err != nil {
		return fmt.Errorf("init transactions schema: %w", err)
	}
	return nil
}

// InsertIgnore inserts the transaction unless its natural key is already
// present. Returns true when a row was actually written.
func (s *PostgresTransactionStore) InsertIgnore(ctx context.Context, t *models.Transaction) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO transactions
		 (account_id, provider, provider_event_id, event_type, payload, occurred_at, verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		t.AccountID, t.Provider, t.ProviderEventID, t.EventType, []byte(t.Payload), t.OccurredAt, t.Verified,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LastEventTime returns max(occurred_at) for the account, or nil when the
// account has never been ingested.
func (s *PostgresTransactionStore) LastEventTime(ctx context.Context, provider, accountID string) (*time.Time, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT max(occurred_at) FROM transactions WHERE provider = $1 AND account_id = $2`,
		provider, accountID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last event time: %w", err)
	}
	return last, nil
}

// Recent returns the most recently occurred transactions, optionally
// filtered by account.
func (s *PostgresTransactionStore) Recent(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `SELECT account_id, provider, provider_event_id, event_type, payload, occurred_at, verified, created_at
	      FROM transactions`
	args := []any{}
	if accountID != "" {
		q += ` WHERE account_id = $1`
		args = append(args, accountID)
	}
	q += fmt.Sprintf(` ORDER BY occurred_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var payload []byte
		if err := rows.Scan(&t.AccountID, &t.Provider, &t.ProviderEventID, &t.EventType, &payload, &t.OccurredAt, &t.Verified, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Payload = payload
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresTransactionStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresTransactionStore) Close() error {
	return nil // pool lifecycle is owned by pkg/postgres.Client
}
