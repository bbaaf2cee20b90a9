package companies

import "time"

// Company is the tenant every user, role and audit record is scoped to.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	INN       string    `json:"inn,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
