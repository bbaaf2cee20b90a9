package rbac

// Action is an operation that can be granted on an entity.
type Action string

// All actions understood by the permission model.
const (
	ActionCreate      Action = "create"
	ActionRead        Action = "read"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionConfirm     Action = "confirm"
	ActionCancel      Action = "cancel"
	ActionExport      Action = "export"
	ActionManageRoles Action = "manage_roles"
)

// Entity categories used for grouping in admin screens.
const (
	CategoryCore    = "Основные"
	CategoryCatalog = "Справочники"
	CategoryAdmin   = "Администрирование"
)

// EntityConfig describes one access-controlled entity: which actions apply
// to it and which catalogs it needs read access to.
type EntityConfig struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Category    string   `json:"category"`
	Actions     []Action `json:"actions"`
	// RequiresRead lists catalog entities whose read access is implied by
	// holding any non-read action on this entity.
	RequiresRead []string `json:"requires_read,omitempty"`
}

// Entities is the authoritative entity/action table. Every applicability
// check in the service and in the role editor goes through this table, so
// adding an entity here is the only step needed to make it governable.
var Entities = []EntityConfig{
	{
		Name:        "dashboard",
		DisplayName: "Дашборд",
		Category:    CategoryCore,
		Actions:     []Action{ActionRead},
	},
	{
		Name:         "operations",
		DisplayName:  "Операции",
		Category:     CategoryCore,
		Actions:      []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionConfirm, ActionCancel},
		RequiresRead: []string{"articles", "accounts", "counterparties", "departments", "deals"},
	},
	{
		Name:         "budgets",
		DisplayName:  "Бюджеты",
		Category:     CategoryCore,
		Actions:      []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		RequiresRead: []string{"articles", "departments"},
	},
	{
		Name:        "reports",
		DisplayName: "Отчеты",
		Category:    CategoryCore,
		Actions:     []Action{ActionRead, ActionExport},
	},
	{
		Name:         "articles",
		DisplayName:  "Статьи",
		Category:     CategoryCatalog,
		Actions:      []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		RequiresRead: []string{"counterparties"},
	},
	{
		Name:        "accounts",
		DisplayName: "Счета",
		Category:    CategoryCatalog,
		Actions:     []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	},
	{
		Name:        "departments",
		DisplayName: "Подразделения",
		Category:    CategoryCatalog,
		Actions:     []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	},
	{
		Name:        "counterparties",
		DisplayName: "Контрагенты",
		Category:    CategoryCatalog,
		Actions:     []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	},
	{
		Name:         "deals",
		DisplayName:  "Сделки",
		Category:     CategoryCatalog,
		Actions:      []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		RequiresRead: []string{"counterparties", "departments"},
	},
	{
		Name:        "salaries",
		DisplayName: "Зарплаты",
		Category:    CategoryCatalog,
		Actions:     []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	},
	{
		Name:        "users",
		DisplayName: "Пользователи",
		Category:    CategoryAdmin,
		Actions:     []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManageRoles},
	},
	{
		Name:        "audit",
		DisplayName: "Аудит",
		Category:    CategoryAdmin,
		Actions:     []Action{ActionRead},
	},
}

var entityIndex = func() map[string]EntityConfig {
	idx := make(map[string]EntityConfig, len(Entities))
	for _, e := range Entities {
		idx[e.Name] = e
	}
	return idx
}()

// EntityByName returns the config for an entity name.
func EntityByName(name string) (EntityConfig, bool) {
	cfg, ok := entityIndex[name]
	return cfg, ok
}

// ValidEntity reports whether the entity exists in the table.
func ValidEntity(name string) bool {
	_, ok := entityIndex[name]
	return ok
}

// ValidAction reports whether action applies to the entity.
func ValidAction(entity string, action Action) bool {
	cfg, ok := entityIndex[entity]
	if !ok {
		return false
	}
	for _, a := range cfg.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// EntityNames returns entity names in table order.
func EntityNames() []string {
	names := make([]string, len(Entities))
	for i, e := range Entities {
		names[i] = e.Name
	}
	return names
}

// EntitiesByCategory groups the table by category, preserving table order
// within each group.
func EntitiesByCategory() map[string][]EntityConfig {
	grouped := make(map[string][]EntityConfig)
	for _, e := range Entities {
		grouped[e.Category] = append(grouped[e.Category], e)
	}
	return grouped
}

// DependentsOf returns the entities that require read access to target.
func DependentsOf(target string) []EntityConfig {
	var deps []EntityConfig
	for _, e := range Entities {
		for _, req := range e.RequiresRead {
			if req == target {
				deps = append(deps, e)
				break
			}
		}
	}
	return deps
}
