package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrSequenceConflict means two ledgers are writing to the same journal.
	ErrSequenceConflict = errors.New("journal sequence already taken")
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_journal (
	seq        BIGINT PRIMARY KEY,
	id         UUID NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS payout_transfers (
	id               UUID PRIMARY KEY,
	recipient        TEXT NOT NULL,
	amount           NUMERIC(78, 0) NOT NULL,
	reason           TEXT NOT NULL,
	flight_airline   TEXT,
	flight_code      TEXT,
	flight_timestamp BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	settled_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS payout_transfers_recipient_idx ON payout_transfers (recipient);
`

// PostgresStore keeps the ledger journal and the payout outbox in Postgres.
// Each entry's transfers are written with the entry, in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the journal and outbox tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append writes one journal entry and its outbox rows in one transaction.
// The entry must follow the last one.
func (s *PostgresStore) Append(ctx context.Context, entry ledger.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var last uint64
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM ledger_journal`).Scan(&last)
	if err != nil {
		return fmt.Errorf("failed to read journal head: %w", err)
	}
	if entry.Seq != last+1 {
		return fmt.Errorf("%w: have %d, appending %d", ErrSequenceConflict, last, entry.Seq)
	}

	row := journalEntryFrom(entry)
	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_journal (seq, id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, row.Seq, row.ID, row.Kind, row.Payload, row.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %d", ErrSequenceConflict, entry.Seq)
		}
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	for _, t := range entry.Transfers {
		transfer := payoutTransferFrom(t)
		_, err = tx.Exec(ctx, `
			INSERT INTO payout_transfers
				(id, recipient, amount, reason, flight_airline, flight_code, flight_timestamp, created_at)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		`, transfer.ID, transfer.Recipient, transfer.Amount, transfer.Reason,
			transfer.FlightAirline, transfer.FlightCode, transfer.FlightTimestamp, transfer.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Entries returns the whole journal in sequence order.
func (s *PostgresStore) Entries(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, id::text, kind, payload, created_at
		FROM ledger_journal
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var row JournalEntry
		if err := rows.Scan(&row.Seq, &row.ID, &row.Kind, &row.Payload, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entry, err := row.toLedger()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// PendingTransfers returns outbox rows not yet marked settled, oldest first.
func (s *PostgresStore) PendingTransfers(ctx context.Context) ([]PayoutTransfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, recipient, amount::text, reason, flight_airline, flight_code,
		       flight_timestamp, created_at, settled_at
		FROM payout_transfers
		WHERE settled_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var out []PayoutTransfer
	for rows.Next() {
		var t PayoutTransfer
		err := rows.Scan(
			&t.ID, &t.Recipient, &t.Amount, &t.Reason, &t.FlightAirline, &t.FlightCode,
			&t.FlightTimestamp, &t.CreatedAt, &t.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkSettled records that the settlement system executed transfer id.
func (s *PostgresStore) MarkSettled(ctx context.Context, id string) error {
	var settled string
	err := s.pool.QueryRow(ctx, `
		UPDATE payout_transfers SET settled_at = NOW()
		WHERE id = $1 AND settled_at IS NULL
		RETURNING id::text
	`, id).Scan(&settled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to mark transfer settled: %w", err)
	}
	return nil
}
