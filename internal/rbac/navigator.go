package rbac

// PageRoute binds a navigable path to the permission that unlocks it.
type PageRoute struct {
	Path   string
	Entity string
	Action Action
}

// pagePriority is the single source of truth for post-login navigation:
// dashboard, operations, reports, budgets, then catalogs, then admin. Both
// the login redirect and the denial fallback resolve through it.
var pagePriority = []PageRoute{
	{Path: "/dashboard", Entity: "dashboard", Action: ActionRead},
	{Path: "/operations", Entity: "operations", Action: ActionRead},
	{Path: "/reports", Entity: "reports", Action: ActionRead},
	{Path: "/budgets", Entity: "budgets", Action: ActionRead},
	{Path: "/catalogs/articles", Entity: "articles", Action: ActionRead},
	{Path: "/catalogs/accounts", Entity: "accounts", Action: ActionRead},
	{Path: "/catalogs/departments", Entity: "departments", Action: ActionRead},
	{Path: "/catalogs/counterparties", Entity: "counterparties", Action: ActionRead},
	{Path: "/catalogs/deals", Entity: "deals", Action: ActionRead},
	{Path: "/admin", Entity: "users", Action: ActionRead},
}

// FirstAvailablePage walks the priority list and returns the first path the
// map grants, or "" when nothing is accessible. Super-admins always land on
// the dashboard. Pure and order-stable.
func FirstAvailablePage(perms PermissionMap, isSuperAdmin bool) string {
	if isSuperAdmin {
		return "/dashboard"
	}
	for _, route := range pagePriority {
		if perms.Has(route.Entity, route.Action) {
			return route.Path
		}
	}
	return ""
}
