package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/finvera/finvera/internal/shared"
)

// Service evaluates permissions with automatic hierarchy and dependency
// resolution. Check order: user state, super-admin bypass, direct grant,
// action hierarchy, catalog dependency.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Check evaluates a single entity/action pair for a user. All failure modes
// resolve to a denied result, never a partial grant.
func (s *Service) Check(ctx context.Context, userID, companyID, entity string, action Action) (CheckResult, error) {
	user, err := s.repo.UserAccess(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return CheckResult{Reason: "user not found"}, nil
		}
		return CheckResult{}, err
	}
	if user.CompanyID != companyID {
		return CheckResult{Reason: "user does not belong to company"}, nil
	}
	if !user.IsActive {
		return CheckResult{Reason: "user is inactive"}, nil
	}
	if user.IsSuperAdmin {
		return CheckResult{Allowed: true, Reason: "user is super admin", GrantedBy: GrantDirect}, nil
	}

	grants, err := s.repo.UserGrants(ctx, userID, companyID)
	if err != nil {
		return CheckResult{}, err
	}

	for _, g := range grants {
		if g.Entity == entity && g.Action == action {
			return CheckResult{
				Allowed:   true,
				Reason:    fmt.Sprintf("direct permission: %s:%s", entity, action),
				GrantedBy: GrantDirect,
			}, nil
		}
	}
	for _, g := range grants {
		if g.Entity == entity && Includes(g.Action, action) {
			return CheckResult{
				Allowed:   true,
				Reason:    fmt.Sprintf("granted by action hierarchy: %s:%s", entity, action),
				GrantedBy: GrantHierarchy,
			}, nil
		}
	}
	if action == ActionRead {
		if dep, ok := dependencyGrant(grants, entity); ok {
			return CheckResult{
				Allowed:   true,
				Reason:    fmt.Sprintf("read granted by dependency: %s requires %s", dep, entity),
				GrantedBy: GrantDependency,
			}, nil
		}
	}
	return CheckResult{Reason: fmt.Sprintf("no permission found for %s:%s", entity, action)}, nil
}

// dependencyGrant reports whether any entity requiring read access to target
// carries a non-read grant.
func dependencyGrant(grants []PermissionTuple, target string) (string, bool) {
	for _, dep := range DependentsOf(target) {
		for _, g := range grants {
			if g.Entity == dep.Name && g.Action != ActionRead {
				return dep.Name, true
			}
		}
	}
	return "", false
}

// UserPermissions returns the flattened permission map of a user, expanded
// through the hierarchy and dependency rules, cached per user.
func (s *Service) UserPermissions(ctx context.Context, userID, companyID string) (PermissionMap, error) {
	user, err := s.repo.UserAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.CompanyID != companyID || !user.IsActive {
		return PermissionMap{}, nil
	}
	if user.IsSuperAdmin {
		return SuperAdminMap(), nil
	}
	return s.cache.Fetch(ctx, userID, func(ctx context.Context) (PermissionMap, error) {
		grants, err := s.repo.UserGrants(ctx, userID, companyID)
		if err != nil {
			return nil, err
		}
		return buildMap(grants), nil
	})
}

// buildMap flattens granted tuples into the per-entity map: hierarchy
// expansion within each entity, then read on required catalogs for every
// non-read grant. Only applicable actions are materialized.
func buildMap(grants []PermissionTuple) PermissionMap {
	byEntity := make(map[string]map[Action]bool)
	grant := func(entity string, action Action) {
		if !ValidAction(entity, action) {
			return
		}
		if byEntity[entity] == nil {
			byEntity[entity] = make(map[Action]bool)
		}
		byEntity[entity][action] = true
	}

	for _, g := range grants {
		grant(g.Entity, g.Action)
		for _, implied := range Implied(g.Action) {
			grant(g.Entity, implied)
		}
	}
	for _, g := range grants {
		if g.Action == ActionRead {
			continue
		}
		cfg, ok := EntityByName(g.Entity)
		if !ok {
			continue
		}
		for _, required := range cfg.RequiresRead {
			grant(required, ActionRead)
		}
	}

	result := make(PermissionMap, len(byEntity))
	for entity, actions := range byEntity {
		list := make([]Action, 0, len(actions))
		for a := range actions {
			list = append(list, a)
		}
		sortActions(list)
		result[entity] = list
	}
	return result
}

// InvalidateUsers drops cached maps after role or assignment mutations.
func (s *Service) InvalidateUsers(ctx context.Context, userIDs ...string) error {
	return s.cache.Invalidate(ctx, userIDs...)
}

// InvalidateRole drops cached maps of every user holding the role.
func (s *Service) InvalidateRole(ctx context.Context, roleID string) error {
	ids, err := s.repo.RoleMemberIDs(ctx, roleID)
	if err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, ids...)
}
