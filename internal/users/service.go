package users

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finvera/finvera/internal/billing"
	"github.com/finvera/finvera/internal/rbac"
	"github.com/finvera/finvera/internal/shared"
)

// InvitationMailer enqueues invitation emails for delivery by the worker.
type InvitationMailer interface {
	EnqueueInvitation(ctx context.Context, email, name, tempPassword string) error
}

// AuditRecorder persists audit entries for user mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// PermissionInvalidator drops cached permission maps.
type PermissionInvalidator interface {
	InvalidateUsers(ctx context.Context, userIDs ...string) error
}

// IdempotencyGuard deduplicates retried invites by client key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service implements user lifecycle and role assignment.
type Service struct {
	repo    RepositoryPort
	billing *billing.Service
	mailer  InvitationMailer
	perms   PermissionInvalidator
	audit   AuditRecorder
	idem    IdempotencyGuard
}

// NewService constructs a Service. Collaborators may be nil in tests.
func NewService(repo RepositoryPort, billingSvc *billing.Service, mailer InvitationMailer, perms PermissionInvalidator, audit AuditRecorder, idem IdempotencyGuard) *Service {
	return &Service{repo: repo, billing: billingSvc, mailer: mailer, perms: perms, audit: audit, idem: idem}
}

// InviteInput is the invite payload.
type InviteInput struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=200"`
}

// UpdateInput is the admin-edit payload.
type UpdateInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// List returns the company's users.
func (s *Service) List(ctx context.Context, companyID string) ([]User, error) {
	return s.repo.List(ctx, companyID)
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, companyID, id string) (User, error) {
	return s.repo.Get(ctx, companyID, id)
}

// Invite creates a user with a generated temporary password and enqueues the
// invitation email. The plan seat limit is enforced first. When idemKey is
// set, a replayed invite returns ErrIdempotencyConflict instead of creating
// a second account.
func (s *Service) Invite(ctx context.Context, companyID, actorID, idemKey string, input InviteInput) (User, error) {
	if s.billing != nil {
		if err := s.billing.EnsureUserCapacity(ctx, companyID); err != nil {
			return User{}, err
		}
	}
	if s.idem != nil && idemKey != "" {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "users.invite"); err != nil {
			return User{}, err
		}
	}
	tempPassword, err := generateTempPassword()
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Name:      strings.TrimSpace(input.Name),
	}
	created, err := s.repo.Create(ctx, user, string(hash))
	if err != nil {
		if s.idem != nil && idemKey != "" {
			_ = s.idem.Delete(ctx, idemKey)
		}
		return User{}, err
	}
	if s.mailer != nil {
		if err := s.mailer.EnqueueInvitation(ctx, created.Email, created.Name, tempPassword); err != nil {
			if s.idem != nil && idemKey != "" {
				_ = s.idem.Delete(ctx, idemKey)
			}
			return User{}, err
		}
	}
	s.record(ctx, companyID, actorID, "user.invited", created.ID, map[string]any{"email": created.Email})
	return created, nil
}

// Update edits name and active state.
func (s *Service) Update(ctx context.Context, companyID, actorID, id string, input UpdateInput) (User, error) {
	user, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return User{}, err
	}
	user.Name = strings.TrimSpace(input.Name)
	if input.IsActive != nil {
		if !*input.IsActive && id == actorID {
			return User{}, ErrSelfDeactivate
		}
		user.IsActive = *input.IsActive
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx, id)
	s.record(ctx, companyID, actorID, "user.updated", id, map[string]any{"is_active": updated.IsActive})
	return updated, nil
}

// Deactivate soft-disables a user. Accounts are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, companyID, actorID, id string) error {
	if id == actorID {
		return ErrSelfDeactivate
	}
	if err := s.repo.SetActive(ctx, companyID, id, false); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.record(ctx, companyID, actorID, "user.deactivated", id, nil)
	return nil
}

// Roles lists a user's role assignments.
func (s *Service) Roles(ctx context.Context, companyID, id string) ([]RoleAssignment, error) {
	if _, err := s.repo.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.repo.Roles(ctx, id)
}

// AssignRole links a role to a user with assignment metadata.
func (s *Service) AssignRole(ctx context.Context, companyID, actorID, userID, roleID string) error {
	if _, err := s.repo.Get(ctx, companyID, userID); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleID, actorID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.record(ctx, companyID, actorID, "user.role_assigned", userID, map[string]any{"role_id": roleID})
	return nil
}

// RemoveRole unlinks a role from a user.
func (s *Service) RemoveRole(ctx context.Context, companyID, actorID, userID, roleID string) error {
	if _, err := s.repo.Get(ctx, companyID, userID); err != nil {
		return err
	}
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.record(ctx, companyID, actorID, "user.role_removed", userID, map[string]any{"role_id": roleID})
	return nil
}

// Navigation resolves the first page a user may open.
func (s *Service) Navigation(ctx context.Context, rbacSvc *rbac.Service, companyID, id string) (string, error) {
	user, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return "", err
	}
	perms, err := rbacSvc.UserPermissions(ctx, id, companyID)
	if err != nil {
		return "", err
	}
	return rbac.FirstAvailablePage(perms, user.IsSuperAdmin), nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.perms != nil {
		_ = s.perms.InvalidateUsers(ctx, userID)
	}
}

func (s *Service) record(ctx context.Context, companyID, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditEntry{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "users",
		EntityID:  entityID,
		Meta:      meta,
	})
}

func generateTempPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
