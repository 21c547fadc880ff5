// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgRegistry implements Registry backed by PostgreSQL.
type pgRegistry struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresRegistry constructs a PostgreSQL-backed tenant registry.
func NewPostgresRegistry(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Registry {
	return &pgRegistry{dbPool: dbPool, log: log}
}

// EnsureSchema creates the registry table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  name text UNIQUE NOT NULL,
  description text DEFAULT '',
  issuer text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgRegistry) Register(ctx context.Context, t Tenant) (Tenant, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	_, err := p.dbPool.Exec(ctx,
		`INSERT INTO tenants(id,name,description,issuer,created_at) VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.Name, t.Description, t.Issuer, t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, ErrExists
		}
		return Tenant{}, err
	}
	return t, nil
}

func (p *pgRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx,
		`SELECT id,name,description,issuer,created_at FROM tenants WHERE id=$1`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Issuer, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (p *pgRegistry) List(ctx context.Context) ([]Tenant, error) {
	rows, err := p.dbPool.Query(ctx,
		`SELECT id,name,description,issuer,created_at FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Issuer, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *pgRegistry) UpdateDescription(ctx context.Context, name, description string) error {
	tag, err := p.dbPool.Exec(ctx,
		`UPDATE tenants SET description=$2 WHERE name=$1`, name, description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgRegistry) Delete(ctx context.Context, name string) error {
	tag, err := p.dbPool.Exec(ctx, `DELETE FROM tenants WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
