package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists cache records in PostgreSQL. Every fetch inserts a
// new row, so the table doubles as a fetch history; Latest reads the newest
// row per nip/source pair.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed cache store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}
	query := `
		INSERT INTO company_data_cache (nip, source, payload, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.NIP, record.Source, payload, record.FetchedAt, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save cache record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, nip, source string) (Record, error) {
	query := `
		SELECT nip, source, payload, fetched_at, expires_at
		FROM company_data_cache
		WHERE nip = $1 AND source = $2
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	var record Record
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, nip, source).Scan(
		&record.NIP, &record.Source, &payload, &record.FetchedAt, &record.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load cache record: %w", err)
	}
	if err := json.Unmarshal(payload, &record.Payload); err != nil {
		return Record{}, fmt.Errorf("unmarshal cache payload: %w", err)
	}
	return record, nil
}

// Schema is the DDL for the cache table, applied by deployments and the
// integration test harness.
const Schema = `
CREATE TABLE IF NOT EXISTS company_data_cache (
	id         BIGSERIAL PRIMARY KEY,
	nip        TEXT        NOT NULL,
	source     TEXT        NOT NULL,
	payload    JSONB       NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_company_data_cache_lookup
	ON company_data_cache (nip, source, fetched_at DESC);
`
