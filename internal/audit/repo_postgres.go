package audit

import (
	"context"
	"fmt"

	"levlyfy/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by *pgxpool.Pool and pgxmock pools.
type DB interface {
	utils.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepo stores the journal in dialer_session_journal.
type PostgresRepo struct {
	db DB
}

func NewPostgresRepo(db DB) *PostgresRepo { return &PostgresRepo{db: db} }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dialer_session_journal (
		id                  UUID PRIMARY KEY,
		user_id             TEXT NOT NULL DEFAULT '',
		from_state          TEXT NOT NULL,
		to_state            TEXT NOT NULL,
		direction           TEXT NOT NULL DEFAULT '',
		provider_session_id TEXT NOT NULL DEFAULT '',
		target_address      TEXT NOT NULL DEFAULT '',
		last_error          TEXT NOT NULL DEFAULT '',
		duration_seconds    INTEGER NOT NULL DEFAULT 0,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS dialer_session_journal_user_created
		ON dialer_session_journal (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS dialer_session_journal_session
		ON dialer_session_journal (provider_session_id)`,
}

// EnsureSchema creates the journal table and indexes in one transaction.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("audit: ensure schema: %w", err)
			}
		}
		return nil
	})
}

const insertEntry = `INSERT INTO dialer_session_journal
	(id, user_id, from_state, to_state, direction, provider_session_id, target_address, last_error, duration_seconds, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, insertEntry,
		e.ID, e.UserID, e.From, e.To, e.Direction, e.ProviderSessionID,
		e.TargetAddress, e.LastError, e.DurationSeconds, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

const selectEntries = `SELECT id, user_id, from_state, to_state, direction, provider_session_id,
	target_address, last_error, duration_seconds, created_at
	FROM dialer_session_journal
	WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR provider_session_id = $2)
	ORDER BY created_at DESC
	LIMIT $3`

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Entry, error) {
	rows, err := r.db.Query(ctx, selectEntries, f.UserID, f.ProviderSessionID, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.From, &e.To, &e.Direction, &e.ProviderSessionID,
			&e.TargetAddress, &e.LastError, &e.DurationSeconds, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return out, nil
}
