package company

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"companyhub/pkg/requestcontext"
)

// PostgresStore persists companies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed company store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, nip string) (Company, error) {
	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO companies (id, nip, name, created_at, updated_at)
		VALUES ($1, $2, '', $3, $3)
		ON CONFLICT (nip) DO UPDATE SET nip = EXCLUDED.nip
		RETURNING id, nip, name, created_at, updated_at
	`
	var c Company
	err := s.db.QueryRowContext(ctx, query, uuid.New(), nip, now).Scan(
		&c.ID, &c.NIP, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Company{}, fmt.Errorf("get or create company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByNIP(ctx context.Context, nip string) (Company, error) {
	query := `SELECT id, nip, name, created_at, updated_at FROM companies WHERE nip = $1`
	var c Company
	err := s.db.QueryRowContext(ctx, query, nip).Scan(
		&c.ID, &c.NIP, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Company{}, ErrNotFound
		}
		return Company{}, fmt.Errorf("find company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SetName(ctx context.Context, nip, name string) error {
	now := requestcontext.Now(ctx)
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET name = $2, updated_at = $3 WHERE nip = $1`, nip, name, now)
	if err != nil {
		return fmt.Errorf("set company name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set company name: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Schema is the DDL for the companies table.
const Schema = `
CREATE TABLE IF NOT EXISTS companies (
	id         UUID        PRIMARY KEY,
	nip        TEXT        NOT NULL UNIQUE,
	name       TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
