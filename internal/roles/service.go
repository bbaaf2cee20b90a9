package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/finvera/finvera/internal/rbac"
	"github.com/finvera/finvera/internal/shared"
)

// ErrInvalidTuple marks permission payloads referencing inapplicable
// entity/action pairs.
var ErrInvalidTuple = fmt.Errorf("недопустимая комбинация сущности и действия")

// PermissionInvalidator drops cached permission maps after role mutations.
type PermissionInvalidator interface {
	InvalidateRole(ctx context.Context, roleID string) error
}

// AuditRecorder persists audit entries for role mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service implements company-scoped role management.
type Service struct {
	repo     RepositoryPort
	perms    PermissionInvalidator
	audit    AuditRecorder
	collator *collate.Collator
}

// NewService constructs a Service. perms and audit may be nil in tests.
func NewService(repo RepositoryPort, perms PermissionInvalidator, audit AuditRecorder) *Service {
	return &Service{
		repo:     repo,
		perms:    perms,
		audit:    audit,
		collator: collate.New(language.Russian),
	}
}

// RoleInput is the mutable part of a role.
type RoleInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"max=120"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// List returns the company's roles ordered by Russian collation.
func (s *Service) List(ctx context.Context, companyID string) ([]Role, error) {
	roles, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	s.sortByName(roles)
	return roles, nil
}

// ListByCategory returns roles of one category.
func (s *Service) ListByCategory(ctx context.Context, companyID, category string) ([]Role, error) {
	roles, err := s.repo.ListByCategory(ctx, companyID, category)
	if err != nil {
		return nil, err
	}
	s.sortByName(roles)
	return roles, nil
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, companyID, id string) (Role, error) {
	return s.repo.Get(ctx, companyID, id)
}

// Create inserts a custom role.
func (s *Service) Create(ctx context.Context, companyID, actorID string, input RoleInput) (Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, ErrNameRequired
	}
	role := Role{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
	}
	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, companyID, actorID, "role.created", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// Update edits a custom role. System roles are immutable.
func (s *Service) Update(ctx context.Context, companyID, actorID, id string, input RoleInput) (Role, error) {
	role, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem {
		return Role{}, ErrSystemRoleEdit
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, ErrNameRequired
	}
	role.Name = name
	role.Description = strings.TrimSpace(input.Description)
	role.Category = strings.TrimSpace(input.Category)
	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}
	updated, err := s.repo.Update(ctx, role)
	if err != nil {
		return Role{}, err
	}
	if s.perms != nil {
		if err := s.perms.InvalidateRole(ctx, id); err != nil {
			return Role{}, err
		}
	}
	s.record(ctx, companyID, actorID, "role.updated", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

// Delete soft-deletes a role. System roles and assigned roles are rejected
// before any row is touched.
func (s *Service) Delete(ctx context.Context, companyID, actorID, id string) error {
	role, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleDelete
	}
	count, err := s.repo.AssignedUserCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w (пользователей: %d)", ErrRoleAssigned, count)
	}
	if err := s.repo.SoftDelete(ctx, companyID, id); err != nil {
		return err
	}
	if s.perms != nil {
		if err := s.perms.InvalidateRole(ctx, id); err != nil {
			return err
		}
	}
	s.record(ctx, companyID, actorID, "role.deleted", id, map[string]any{"name": role.Name})
	return nil
}

// Permissions returns the stored tuples of a role.
func (s *Service) Permissions(ctx context.Context, companyID, roleID string) ([]rbac.PermissionTuple, error) {
	if _, err := s.repo.Get(ctx, companyID, roleID); err != nil {
		return nil, err
	}
	return s.repo.Permissions(ctx, roleID)
}

// ReplacePermissions validates the payload against the entity table, expands
// granted actions through the hierarchy and swaps the role's tuple set. Only
// granted rows are persisted, so a role's permission state is exactly its
// stored tuples.
func (s *Service) ReplacePermissions(ctx context.Context, companyID, actorID, roleID string, tuples []rbac.PermissionTuple) error {
	role, err := s.repo.Get(ctx, companyID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleEdit
	}

	granted := make(map[string][]rbac.Action)
	for _, t := range tuples {
		if !rbac.ValidAction(t.Entity, t.Action) {
			return fmt.Errorf("%w: %s:%s", ErrInvalidTuple, t.Entity, t.Action)
		}
		if t.Allowed {
			granted[t.Entity] = append(granted[t.Entity], t.Action)
		}
	}

	var expanded []rbac.PermissionTuple
	for _, entity := range rbac.EntityNames() {
		actions, ok := granted[entity]
		if !ok {
			continue
		}
		for _, action := range rbac.Expand(actions) {
			if !rbac.ValidAction(entity, action) {
				continue
			}
			expanded = append(expanded, rbac.PermissionTuple{Entity: entity, Action: action, Allowed: true})
		}
	}

	if err := s.repo.ReplacePermissions(ctx, roleID, expanded); err != nil {
		return err
	}
	if s.perms != nil {
		if err := s.perms.InvalidateRole(ctx, roleID); err != nil {
			return err
		}
	}
	s.record(ctx, companyID, actorID, "role.permissions_updated", roleID, map[string]any{
		"name":   role.Name,
		"tuples": len(expanded),
	})
	return nil
}

func (s *Service) sortByName(roles []Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		return s.collator.CompareString(roles[i].Name, roles[j].Name) < 0
	})
}

func (s *Service) record(ctx context.Context, companyID, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	// Audit failures must not fail the mutation itself.
	_ = s.audit.Record(ctx, shared.AuditEntry{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "roles",
		EntityID:  entityID,
		Meta:      meta,
	})
}
