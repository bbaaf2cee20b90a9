package roles

import (
	"errors"
	"time"
)

// Role is a reusable bundle of permissions scoped to a company.
type Role struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	IsSystem    bool       `json:"is_system"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Fixed user-facing messages for role protection rules.
var (
	ErrNotFound         = errors.New("роль не найдена")
	ErrNameRequired     = errors.New("Название роли обязательно")
	ErrDuplicateName    = errors.New("Роль с таким названием уже существует")
	ErrSystemRoleEdit   = errors.New("Нельзя изменить системную роль")
	ErrSystemRoleDelete = errors.New("Нельзя удалить системную роль")
	ErrRoleAssigned     = errors.New("Нельзя удалить роль, назначенную пользователям")
)
