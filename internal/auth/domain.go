package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           string
	CompanyID    string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	IsSuperAdmin bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
