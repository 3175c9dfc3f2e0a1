package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/models"
)

// PostgresLedger stores processed tickets in a single table. Insert-if-absent
// comes from the primary key and ON CONFLICT DO NOTHING, so concurrent
// instances race safely without file locking. Intended for fleets that have
// outgrown a shared ledger file; the JSON file remains the default.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS processed_tickets (
	id             TEXT PRIMARY KEY,
	url            TEXT NOT NULL DEFAULT '',
	processed_time TIMESTAMPTZ NOT NULL
);
`

// NewPostgresLedger connects to Postgres and bootstraps the schema.
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, ledgerSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap ledger schema: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

func (l *PostgresLedger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

func (l *PostgresLedger) IsProcessed(ctx context.Context, id string) bool {
	var exists bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM processed_tickets WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		logrus.Errorf("ledger lookup %s: %v", id, err)
		return false
	}
	return exists
}

func (l *PostgresLedger) MarkProcessed(ctx context.Context, id, url string, at time.Time) bool {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO processed_tickets (id, url, processed_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, id, url, at)
	if err != nil {
		// Same contract as the file backend: log, report done, move on.
		logrus.Errorf("ledger insert %s: %v", id, err)
		return true
	}
	return tag.RowsAffected() > 0
}

func (l *PostgresLedger) Load(ctx context.Context) map[string]models.LedgerEntry {
	entries := map[string]models.LedgerEntry{}
	rows, err := l.pool.Query(ctx, `SELECT id, url, processed_time FROM processed_tickets`)
	if err != nil {
		logrus.Errorf("ledger load: %v", err)
		return entries
	}
	defer rows.Close()

	for rows.Next() {
		var id, url string
		var at time.Time
		if err := rows.Scan(&id, &url, &at); err != nil {
			logrus.Errorf("scan ledger row: %v", err)
			continue
		}
		entries[id] = models.LedgerEntry{
			URL:           url,
			ProcessedTime: at.Format(models.LedgerTimeLayout),
		}
	}
	return entries
}

// Prune deletes entries processed before the cutoff.
func (l *PostgresLedger) Prune(ctx context.Context, before time.Time) (int, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM processed_tickets WHERE processed_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
