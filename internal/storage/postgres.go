// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"leadgen/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	seq        BIGSERIAL,
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	company    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	source_ip  TEXT NOT NULL DEFAULT ''
)`

// PostgresStore keeps leads in a table whose unique email column is the
// dedup key, so concurrent inserts from any number of processes are safe.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to db")
	}
	return &PostgresStore{DB: db}, nil
}

var _ LeadStore = (*PostgresStore)(nil)

// EnsureSchema creates the leads table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create leads table")
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, lead *model.Lead) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO leads (id, name, email, company, phone, message, created_at, source_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO NOTHING`,
		lead.ID, lead.Name, EmailKey(lead.Email), lead.Company, lead.Phone, lead.Message, lead.CreatedAt, lead.SourceIP,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert lead")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "insert lead")
	}
	return n == 1, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*model.Lead, error) {
	var l model.Lead
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, email, company, phone, message, created_at, source_ip
		FROM leads
		WHERE email = $1`, EmailKey(email),
	).Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Phone, &l.Message, &l.CreatedAt, &l.SourceIP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find lead by email")
	}
	return &l, nil
}

// Count returns the number of stored leads.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count leads")
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}
