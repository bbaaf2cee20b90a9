package shared

import "errors"

// Cross-module sentinels. Feature packages define their own domain
// errors; these cover concerns shared by several of them.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	ErrCSRFTokenMissing   = errors.New("csrf token missing")
	ErrCSRFTokenMismatch  = errors.New("csrf token mismatch")
)
