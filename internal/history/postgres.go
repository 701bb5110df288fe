package history

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new history store backed by PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// RecordAttempt inserts one generation attempt row.
func (s *PostgresStore) RecordAttempt(ctx context.Context, a Attempt) error {
	query := `
INSERT INTO generation_attempts (id, user_id, kind, job_id, cost, outcome, refunded, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.Kind,
		a.JobID,
		a.Cost,
		a.Outcome,
		a.Refunded,
		a.CreatedAt,
	)
	return err
}

// RecordReconciliation inserts a failed-compensation row. The op_ref unique
// constraint makes replays harmless when a higher layer retries.
func (s *PostgresStore) RecordReconciliation(ctx context.Context, item ReconciliationItem) error {
	query := `
INSERT INTO ledger_reconciliations (id, user_id, amount, op_ref, original_error, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (op_ref) DO NOTHING;
`
	_, err := s.pool.Exec(ctx, query,
		item.ID,
		item.UserID,
		item.Amount,
		item.OpRef,
		item.OriginalError,
		item.CreatedAt,
	)
	return err
}
