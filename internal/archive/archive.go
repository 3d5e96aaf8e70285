// Package archive mirrors ledger transactions into Postgres for reporting.
// The snapshot file stays authoritative; the mirror is best effort and a
// recording failure never fails the posting that produced it.
package archive

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// Archiver records transactions in a secondary store.
type Archiver interface {
	Record(ctx context.Context, tx store.Transaction) error
}

type noopArchiver struct{}

// Noop returns an archiver that drops everything, used when DATABASE_URL is
// unset.
func Noop() Archiver {
	return noopArchiver{}
}

func (noopArchiver) Record(context.Context, store.Transaction) error { return nil }

// PostgresArchiver appends one row per transaction.
type PostgresArchiver struct {
	db *pgxpool.Pool
}

// NewPostgres builds an archiver backed by PostgreSQL.
func NewPostgres(db *pgxpool.Pool) *PostgresArchiver {
	return &PostgresArchiver{db: db}
}

// Record inserts the transaction. Conflicts on tx_id are ignored so replays
// after a crash stay harmless.
func (a *PostgresArchiver) Record(ctx context.Context, tx store.Transaction) error {
	_, err := a.db.Exec(ctx, `INSERT INTO transactions (tx_id, user_id, type, amount, balance_after, ref_id, idem_key, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (tx_id) DO NOTHING`,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.BalanceAfter, tx.RefID, tx.IdemKey, tx.CreatedAt.UTC())
	return err
}
