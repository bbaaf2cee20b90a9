package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort abstracts user persistence.
type RepositoryPort interface {
	List(ctx context.Context, companyID string) ([]User, error)
	Get(ctx context.Context, companyID, id string) (User, error)
	Create(ctx context.Context, user User, passwordHash string) (User, error)
	Update(ctx context.Context, user User) (User, error)
	SetActive(ctx context.Context, companyID, id string, active bool) error
	Roles(ctx context.Context, userID string) ([]RoleAssignment, error)
	AssignRole(ctx context.Context, userID, roleID, assignedBy string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, company_id, email, COALESCE(name, ''), is_active, is_super_admin, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &u.IsActive, &u.IsSuperAdmin, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns the company's users ordered by creation time.
func (r *Repository) List(ctx context.Context, companyID string) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE company_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Get fetches one user within the company scope.
func (r *Repository) Get(ctx context.Context, companyID, id string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE company_id = $1 AND id = $2`
	u, err := scanUser(r.pool.QueryRow(ctx, q, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Create inserts an invited user.
func (r *Repository) Create(ctx context.Context, user User, passwordHash string) (User, error) {
	const q = `
INSERT INTO users (id, company_id, email, name, password_hash, is_active, is_super_admin, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, FALSE, NOW(), NOW())
RETURNING ` + userColumns
	created, err := scanUser(r.pool.QueryRow(ctx, q, user.ID, user.CompanyID, user.Email, user.Name, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return created, nil
}

// Update changes mutable user fields.
func (r *Repository) Update(ctx context.Context, user User) (User, error) {
	const q = `
UPDATE users SET name = $3, is_active = $4, updated_at = NOW()
WHERE company_id = $1 AND id = $2
RETURNING ` + userColumns
	updated, err := scanUser(r.pool.QueryRow(ctx, q, user.CompanyID, user.ID, user.Name, user.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return updated, nil
}

// SetActive flips the soft-disable flag.
func (r *Repository) SetActive(ctx context.Context, companyID, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $3, updated_at = NOW() WHERE company_id = $1 AND id = $2`, companyID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Roles lists the user's role assignments.
func (r *Repository) Roles(ctx context.Context, userID string) ([]RoleAssignment, error) {
	const q = `
SELECT ur.role_id, ro.name, ur.assigned_at, ur.assigned_by
FROM user_roles ur
JOIN roles ro ON ro.id = ur.role_id
WHERE ur.user_id = $1 AND ro.deleted_at IS NULL
ORDER BY ur.assigned_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.RoleID, &a.RoleName, &a.AssignedAt, &a.AssignedBy); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// AssignRole links a role to a user.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID, assignedBy string) error {
	const q = `INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by) VALUES ($1, $2, NOW(), $3)`
	if _, err := r.pool.Exec(ctx, q, userID, roleID, assignedBy); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return err
	}
	return nil
}

// RemoveRole unlinks a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
