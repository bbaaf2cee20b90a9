package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/finvera/finvera/internal/rbac"
	"github.com/finvera/finvera/internal/shared"
)

type stubRolesRepo struct {
	roles         map[string]Role
	perms         map[string][]rbac.PermissionTuple
	assignedCount int
	deleted       []string
	replaced      map[string][]rbac.PermissionTuple
	createErr     error
}

func newStubRolesRepo() *stubRolesRepo {
	return &stubRolesRepo{
		roles:    map[string]Role{},
		perms:    map[string][]rbac.PermissionTuple{},
		replaced: map[string][]rbac.PermissionTuple{},
	}
}

func (s *stubRolesRepo) List(ctx context.Context, companyID string) ([]Role, error) {
	var roles []Role
	for _, r := range s.roles {
		if r.CompanyID == companyID {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (s *stubRolesRepo) ListByCategory(ctx context.Context, companyID, category string) ([]Role, error) {
	var roles []Role
	for _, r := range s.roles {
		if r.CompanyID == companyID && r.Category == category {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (s *stubRolesRepo) Get(ctx context.Context, companyID, id string) (Role, error) {
	r, ok := s.roles[id]
	if !ok || r.CompanyID != companyID {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (s *stubRolesRepo) Create(ctx context.Context, role Role) (Role, error) {
	if s.createErr != nil {
		return Role{}, s.createErr
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubRolesRepo) Update(ctx context.Context, role Role) (Role, error) {
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubRolesRepo) SoftDelete(ctx context.Context, companyID, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.roles, id)
	return nil
}

func (s *stubRolesRepo) AssignedUserCount(ctx context.Context, roleID string) (int, error) {
	return s.assignedCount, nil
}

func (s *stubRolesRepo) Permissions(ctx context.Context, roleID string) ([]rbac.PermissionTuple, error) {
	return s.perms[roleID], nil
}

func (s *stubRolesRepo) ReplacePermissions(ctx context.Context, roleID string, tuples []rbac.PermissionTuple) error {
	s.replaced[roleID] = tuples
	return nil
}

type stubInvalidator struct {
	roles []string
}

func (s *stubInvalidator) InvalidateRole(ctx context.Context, roleID string) error {
	s.roles = append(s.roles, roleID)
	return nil
}

type stubAudit struct {
	entries []shared.AuditEntry
}

func (s *stubAudit) Record(ctx context.Context, entry shared.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newStubRolesRepo(), nil, nil)
	_, err := svc.Create(context.Background(), "c1", "u1", RoleInput{Name: "   "})
	if !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestDeleteSystemRoleRejectedBeforeAnyWrite(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Администратор", IsSystem: true}
	repo.assignedCount = 3
	svc := NewService(repo, nil, nil)

	err := svc.Delete(context.Background(), "c1", "u1", "r1")
	if !errors.Is(err, ErrSystemRoleDelete) {
		t.Fatalf("expected ErrSystemRoleDelete, got %v", err)
	}
	if err.Error() != "Нельзя удалить системную роль" {
		t.Fatalf("fixed message expected, got %q", err.Error())
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("system role must not be touched")
	}
}

func TestDeleteAssignedRoleConflicts(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Менеджер"}
	repo.assignedCount = 2
	svc := NewService(repo, nil, nil)

	err := svc.Delete(context.Background(), "c1", "u1", "r1")
	if !errors.Is(err, ErrRoleAssigned) {
		t.Fatalf("expected ErrRoleAssigned, got %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("assigned role must not be deleted")
	}
}

func TestDeleteInvalidatesAndAudits(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Менеджер"}
	inv := &stubInvalidator{}
	audit := &stubAudit{}
	svc := NewService(repo, inv, audit)

	if err := svc.Delete(context.Background(), "c1", "u1", "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "r1" {
		t.Fatalf("soft delete expected, got %v", repo.deleted)
	}
	if len(inv.roles) != 1 || inv.roles[0] != "r1" {
		t.Fatalf("cache invalidation expected, got %v", inv.roles)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "role.deleted" {
		t.Fatalf("audit entry expected, got %v", audit.entries)
	}
}

func TestUpdateSystemRoleRejected(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Администратор", IsSystem: true}
	svc := NewService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "c1", "u1", "r1", RoleInput{Name: "Другое"})
	if !errors.Is(err, ErrSystemRoleEdit) {
		t.Fatalf("expected ErrSystemRoleEdit, got %v", err)
	}
}

func TestReplacePermissionsExpandsHierarchy(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Менеджер"}
	inv := &stubInvalidator{}
	svc := NewService(repo, inv, nil)

	err := svc.ReplacePermissions(context.Background(), "c1", "u1", "r1", []rbac.PermissionTuple{
		{Entity: "operations", Action: rbac.ActionDelete, Allowed: true},
		{Entity: "reports", Action: rbac.ActionRead, Allowed: false},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	stored := repo.replaced["r1"]
	want := map[string]bool{
		"operations:delete": true,
		"operations:update": true,
		"operations:read":   true,
	}
	if len(stored) != len(want) {
		t.Fatalf("expected %d persisted tuples, got %v", len(want), stored)
	}
	for _, tup := range stored {
		key := tup.Entity + ":" + string(tup.Action)
		if !want[key] || !tup.Allowed {
			t.Fatalf("unexpected tuple %v", tup)
		}
	}
	if len(inv.roles) != 1 {
		t.Fatalf("cache invalidation expected")
	}
}

func TestReplacePermissionsRejectsInapplicablePair(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Менеджер"}
	svc := NewService(repo, nil, nil)

	err := svc.ReplacePermissions(context.Background(), "c1", "u1", "r1", []rbac.PermissionTuple{
		{Entity: "dashboard", Action: rbac.ActionDelete, Allowed: true},
	})
	if !errors.Is(err, ErrInvalidTuple) {
		t.Fatalf("expected ErrInvalidTuple, got %v", err)
	}
	if len(repo.replaced) != 0 {
		t.Fatalf("nothing must be persisted on validation failure")
	}
}

func TestReplacePermissionsSystemRoleRejected(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["r1"] = Role{ID: "r1", CompanyID: "c1", Name: "Администратор", IsSystem: true}
	svc := NewService(repo, nil, nil)

	err := svc.ReplacePermissions(context.Background(), "c1", "u1", "r1", nil)
	if !errors.Is(err, ErrSystemRoleEdit) {
		t.Fatalf("expected ErrSystemRoleEdit, got %v", err)
	}
}

func TestListSortsWithRussianCollation(t *testing.T) {
	repo := newStubRolesRepo()
	repo.roles["1"] = Role{ID: "1", CompanyID: "c1", Name: "Бухгалтер"}
	repo.roles["2"] = Role{ID: "2", CompanyID: "c1", Name: "Администратор"}
	repo.roles["3"] = Role{ID: "3", CompanyID: "c1", Name: "Ёж-аналитик"}
	svc := NewService(repo, nil, nil)

	roles, err := svc.List(context.Background(), "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(roles))
	}
	if roles[0].Name != "Администратор" || roles[1].Name != "Бухгалтер" {
		t.Fatalf("collation order broken: %v", []string{roles[0].Name, roles[1].Name, roles[2].Name})
	}
}
