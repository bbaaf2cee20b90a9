package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvera/finvera/internal/shared"
)

// RepositoryPort abstracts company lookups.
type RepositoryPort interface {
	FindByID(ctx context.Context, id string) (*Company, error)
}

// Repository implements RepositoryPort on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByID loads one company.
func (r *Repository) FindByID(ctx context.Context, id string) (*Company, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(inn, ''), created_at FROM companies WHERE id = $1`, id)
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.INN, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
