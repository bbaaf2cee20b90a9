package rbac

import "testing"

func TestFirstAvailablePageEmptyMap(t *testing.T) {
	if got := FirstAvailablePage(PermissionMap{}, false); got != "" {
		t.Fatalf("empty map must resolve to no page, got %q", got)
	}
	if got := FirstAvailablePage(nil, false); got != "" {
		t.Fatalf("nil map must resolve to no page, got %q", got)
	}
}

func TestFirstAvailablePageSuperAdmin(t *testing.T) {
	if got := FirstAvailablePage(nil, true); got != "/dashboard" {
		t.Fatalf("super admin must land on dashboard, got %q", got)
	}
}

func TestFirstAvailablePagePriority(t *testing.T) {
	perms := PermissionMap{
		"deals":     {ActionRead},
		"dashboard": {ActionRead},
		"reports":   {ActionRead},
	}
	if got := FirstAvailablePage(perms, false); got != "/dashboard" {
		t.Fatalf("dashboard must win priority, got %q", got)
	}

	delete(perms, "dashboard")
	if got := FirstAvailablePage(perms, false); got != "/reports" {
		t.Fatalf("reports outranks catalogs, got %q", got)
	}
}

func TestFirstAvailablePageReadOnly(t *testing.T) {
	perms := PermissionMap{"operations": {ActionRead}}
	if got := FirstAvailablePage(perms, false); got != "/operations" {
		t.Fatalf("operations read must resolve /operations, got %q", got)
	}
	// A grant that is not read on the route entity does not unlock the page.
	perms = PermissionMap{"users": {ActionManageRoles}}
	if got := FirstAvailablePage(perms, false); got != "" {
		t.Fatalf("manage_roles without read must not unlock admin, got %q", got)
	}
}
