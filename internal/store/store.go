// Package store persists value records in PostgreSQL. The table is the
// system's store of record for computed values: the cross-reference index can
// be rebuilt from it when the checkpoint log is lost.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/postgres"
)

// Schema creates the platform tables. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS value_records (
    phrase_id   TEXT        NOT NULL,
    phrase      TEXT        NOT NULL,
    alphabet    TEXT        NOT NULL,
    method      TEXT        NOT NULL,
    value       BIGINT      NOT NULL,
    hierarchy   BOOLEAN     NOT NULL DEFAULT FALSE,
    computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (phrase_id, alphabet, method)
);
CREATE INDEX IF NOT EXISTS value_records_lookup
    ON value_records (alphabet, method, value);

CREATE TABLE IF NOT EXISTS baseline_records (
    phrase   TEXT   NOT NULL,
    alphabet TEXT   NOT NULL,
    method   TEXT   NOT NULL,
    expected BIGINT NOT NULL,
    source   TEXT   NOT NULL DEFAULT '',
    PRIMARY KEY (phrase, alphabet, method, source)
);
`

// Records wraps value-record persistence.
type Records struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates the Records store and ensures the schema exists.
func New(ctx context.Context, db *postgres.Client) (*Records, error) {
	if _, err := db.DB.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Records{
		db:     db,
		logger: slog.Default().With("component", "value-record-store"),
	}, nil
}

// UpsertBatch writes all of a phrase's value records in one transaction.
// Values are referentially transparent, so the ON CONFLICT update only ever
// refreshes computed_at. primary marks which method's record carries the
// hierarchy flag.
func (r *Records) UpsertBatch(ctx context.Context, records []codec.ValueRecord, primary codec.MethodID) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO value_records (phrase_id, phrase, alphabet, method, value, hierarchy, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (phrase_id, alphabet, method)
			DO UPDATE SET value = EXCLUDED.value, computed_at = EXCLUDED.computed_at`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx,
				rec.PhraseID, rec.Phrase, rec.Alphabet, string(rec.Method),
				rec.Value, rec.Method == primary, rec.ComputedAt,
			); err != nil {
				return fmt.Errorf("upserting value record %s/%s/%s: %w", rec.PhraseID, rec.Alphabet, rec.Method, err)
			}
		}
		return nil
	})
}

// RefSource streams every stored value record as an index Ref, in insertion
// order of (computed_at, phrase_id), for rebuilding the index without
// recomputing the codec.
func (r *Records) RefSource(ctx context.Context, primaryMethod codec.MethodID) xref.RefSource {
	return func(emit func(xref.Ref) error) error {
		rows, err := r.db.DB.QueryContext(ctx, `
			SELECT phrase_id, alphabet, method, value
			FROM value_records
			ORDER BY computed_at, phrase_id, method`)
		if err != nil {
			return fmt.Errorf("querying value records: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var phraseID, alphabet, method string
			var value int64
			if err := rows.Scan(&phraseID, &alphabet, &method, &value); err != nil {
				return fmt.Errorf("scanning value record: %w", err)
			}
			if err := emit(xref.Ref{
				Alphabet:  alphabet,
				Method:    codec.MethodID(method),
				Value:     value,
				PhraseID:  phraseID,
				Hierarchy: codec.MethodID(method) == primaryMethod,
			}); err != nil {
				return err
			}
		}
		return rows.Err()
	}
}

// Count returns the number of stored value records.
func (r *Records) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM value_records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting value records: %w", err)
	}
	return n, nil
}
