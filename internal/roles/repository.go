package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvera/finvera/internal/platform/db"
	"github.com/finvera/finvera/internal/rbac"
)

// RepositoryPort abstracts role persistence.
type RepositoryPort interface {
	List(ctx context.Context, companyID string) ([]Role, error)
	ListByCategory(ctx context.Context, companyID, category string) ([]Role, error)
	Get(ctx context.Context, companyID, id string) (Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	SoftDelete(ctx context.Context, companyID, id string) error
	AssignedUserCount(ctx context.Context, roleID string) (int, error)
	Permissions(ctx context.Context, roleID string) ([]rbac.PermissionTuple, error)
	ReplacePermissions(ctx context.Context, roleID string, tuples []rbac.PermissionTuple) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, company_id, name, COALESCE(description, ''), COALESCE(category, ''), is_system, is_active, created_at, updated_at, deleted_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.CompanyID, &r.Name, &r.Description, &r.Category, &r.IsSystem, &r.IsActive, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	return r, err
}

// List returns the company's non-deleted roles.
func (r *Repository) List(ctx context.Context, companyID string) ([]Role, error) {
	const q = `SELECT ` + roleColumns + ` FROM roles WHERE company_id = $1 AND deleted_at IS NULL ORDER BY name`
	rows, err := r.pool.Query(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// ListByCategory filters roles by category.
func (r *Repository) ListByCategory(ctx context.Context, companyID, category string) ([]Role, error) {
	const q = `SELECT ` + roleColumns + ` FROM roles WHERE company_id = $1 AND category = $2 AND deleted_at IS NULL ORDER BY name`
	rows, err := r.pool.Query(ctx, q, companyID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Get fetches one role within the company scope.
func (r *Repository) Get(ctx context.Context, companyID, id string) (Role, error) {
	const q = `SELECT ` + roleColumns + ` FROM roles WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL`
	role, err := scanRole(r.pool.QueryRow(ctx, q, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Create inserts a role. Duplicate names within a company map to
// ErrDuplicateName via the unique constraint.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	const q = `
INSERT INTO roles (id, company_id, name, description, category, is_system, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
RETURNING ` + roleColumns
	created, err := scanRole(r.pool.QueryRow(ctx, q, role.ID, role.CompanyID, role.Name, role.Description, role.Category, role.IsSystem))
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateName
		}
		return Role{}, err
	}
	return created, nil
}

// Update changes name, description, category and active flag.
func (r *Repository) Update(ctx context.Context, role Role) (Role, error) {
	const q = `
UPDATE roles SET name = $3, description = $4, category = $5, is_active = $6, updated_at = NOW()
WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL
RETURNING ` + roleColumns
	updated, err := scanRole(r.pool.QueryRow(ctx, q, role.CompanyID, role.ID, role.Name, role.Description, role.Category, role.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateName
		}
		return Role{}, err
	}
	return updated, nil
}

// SoftDelete marks the role deleted and inactive.
func (r *Repository) SoftDelete(ctx context.Context, companyID, id string) error {
	const q = `UPDATE roles SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW() WHERE company_id = $1 AND id = $2 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignedUserCount counts users currently holding the role.
func (r *Repository) AssignedUserCount(ctx context.Context, roleID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// Permissions returns the stored tuples of a role.
func (r *Repository) Permissions(ctx context.Context, roleID string) ([]rbac.PermissionTuple, error) {
	rows, err := r.pool.Query(ctx, `SELECT entity, action, allowed FROM role_permissions WHERE role_id = $1 ORDER BY entity, action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tuples []rbac.PermissionTuple
	for rows.Next() {
		var t rbac.PermissionTuple
		if err := rows.Scan(&t.Entity, &t.Action, &t.Allowed); err != nil {
			return nil, err
		}
		tuples = append(tuples, t)
	}
	return tuples, rows.Err()
}

// ReplacePermissions swaps the role's tuple set in one transaction.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID string, tuples []rbac.PermissionTuple) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, t := range tuples {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, entity, action, allowed) VALUES ($1, $2, $3, $4)`,
				roleID, t.Entity, t.Action, t.Allowed); err != nil {
				return err
			}
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
