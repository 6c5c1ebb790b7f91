package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"PayPull/internal/domain/models"
	"PayPull/internal/domain/repository"
)

const columnsQuery = `
SELECT c.table_name, c.column_name
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'`

// PostgresAccountSource lists active accounts with credentials attached.
// The credential relation is discovered once, at construction; the polling
// core only ever sees ListActiveAccounts.
type PostgresAccountSource struct {
	pool          *pgxpool.Pool
	rel           credentialRelation
	accountsTable string
	provider      string
}

// NewPostgresAccountSource introspects the schema for the credential
// relation and returns an account source bound to it. Fails with a
// ConfigError when no relation carries the required columns.
func NewPostgresAccountSource(ctx context.Context, pool *pgxpool.Pool, accountsTable, provider string) (repository.AccountSource, error) {
	rows, err := pool.Query(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}
	defer rows.Close()

	columnsByTable := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("introspect schema: %w", err)
		}
		columnsByTable[table] = append(columnsByTable[table], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}

	rel, ok := selectCredentialRelation(columnsByTable)
	if !ok {
		return nil, &models.ConfigError{Msg: "no relation with provider credential columns found"}
	}

	return &PostgresAccountSource{
		pool:          pool,
		rel:           rel,
		accountsTable: accountsTable,
		provider:      provider,
	}, nil
}

// ListActiveAccounts returns active accounts ordered by label, with
// credentials joined from the discovered relation.
func (s *PostgresAccountSource) ListActiveAccounts(ctx context.Context) ([]models.Account, error) {
	q := fmt.Sprintf(
		`SELECT a.id::text, a.label, c.%s, c.%s
		 FROM %s c
		 JOIN %s a ON a.id::text = c.%s::text
		 WHERE a.active`,
		ident(s.rel.ClientIDCol),
		ident(s.rel.SecretCol),
		ident(s.rel.Table),
		ident(s.accountsTable),
		ident(s.rel.AccountRefCol),
	)
	args := []any{}
	if s.rel.ProviderCol != "" {
		q += fmt.Sprintf(" AND c.%s = $1", ident(s.rel.ProviderCol))
		args = append(args, s.provider)
	}
	q += " ORDER BY a.label"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Label, &a.ClientID, &a.ClientSecret); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
