package users

import (
	"errors"
	"time"
)

// User is an account within a company.
type User struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"is_active"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RoleAssignment links a user to a role with assignment metadata.
type RoleAssignment struct {
	RoleID     string    `json:"role_id"`
	RoleName   string    `json:"role_name"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy string    `json:"assigned_by"`
}

var (
	ErrNotFound       = errors.New("пользователь не найден")
	ErrEmailTaken     = errors.New("Пользователь с таким email уже существует")
	ErrAlreadyMember  = errors.New("роль уже назначена пользователю")
	ErrSelfDeactivate = errors.New("Нельзя отключить собственную учётную запись")
)
