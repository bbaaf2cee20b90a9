package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvera/finvera/internal/shared"
)

// RepositoryPort abstracts persistence for permission evaluation.
type RepositoryPort interface {
	UserAccess(ctx context.Context, userID string) (UserAccess, error)
	UserGrants(ctx context.Context, userID, companyID string) ([]PermissionTuple, error)
	RoleMemberIDs(ctx context.Context, roleID string) ([]string, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserAccess loads the evaluation projection of a user.
func (r *Repository) UserAccess(ctx context.Context, userID string) (UserAccess, error) {
	const q = `SELECT id, company_id, is_active, is_super_admin FROM users WHERE id = $1`
	var ua UserAccess
	err := r.pool.QueryRow(ctx, q, userID).Scan(&ua.ID, &ua.CompanyID, &ua.IsActive, &ua.IsSuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAccess{}, shared.ErrNotFound
		}
		return UserAccess{}, err
	}
	return ua, nil
}

// UserGrants returns the granted tuples of a user across active,
// non-deleted roles of the company.
func (r *Repository) UserGrants(ctx context.Context, userID, companyID string) ([]PermissionTuple, error) {
	const q = `
SELECT DISTINCT rp.entity, rp.action
FROM role_permissions rp
JOIN user_roles ur ON ur.role_id = rp.role_id
JOIN roles ro ON ro.id = rp.role_id
WHERE ur.user_id = $1
  AND ro.company_id = $2
  AND ro.is_active
  AND ro.deleted_at IS NULL
  AND rp.allowed`
	rows, err := r.pool.Query(ctx, q, userID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []PermissionTuple
	for rows.Next() {
		var t PermissionTuple
		if err := rows.Scan(&t.Entity, &t.Action); err != nil {
			return nil, err
		}
		t.Allowed = true
		grants = append(grants, t)
	}
	return grants, rows.Err()
}

// RoleMemberIDs lists users assigned to a role, used to target cache
// invalidation after permission edits.
func (r *Repository) RoleMemberIDs(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
