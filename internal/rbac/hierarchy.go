package rbac

// actionHierarchy maps an action to the actions it automatically grants.
// Transitive closure is resolved by Includes/Implied, so only direct
// inclusions are listed here.
var actionHierarchy = map[Action][]Action{
	ActionRead:        nil,
	ActionCreate:      {ActionRead},
	ActionUpdate:      {ActionRead},
	ActionDelete:      {ActionUpdate, ActionRead},
	ActionConfirm:     {ActionRead},
	ActionCancel:      {ActionRead},
	ActionExport:      {ActionRead},
	ActionManageRoles: {ActionRead},
}

// Includes reports whether holding higher grants lower, directly or
// transitively. An action always includes itself.
func Includes(higher, lower Action) bool {
	if higher == lower {
		return true
	}
	for _, mid := range actionHierarchy[higher] {
		if Includes(mid, lower) {
			return true
		}
	}
	return false
}

// Implied returns every action granted by holding action, not counting the
// action itself.
func Implied(action Action) []Action {
	var result []Action
	seen := map[Action]bool{}
	queue := []Action{action}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, implied := range actionHierarchy[current] {
			if seen[implied] {
				continue
			}
			seen[implied] = true
			result = append(result, implied)
			queue = append(queue, implied)
		}
	}
	return result
}

// Expand returns the closure of actions: the inputs plus everything they
// imply, deduplicated, in stable first-seen order.
func Expand(actions []Action) []Action {
	seen := map[Action]bool{}
	var result []Action
	add := func(a Action) {
		if !seen[a] {
			seen[a] = true
			result = append(result, a)
		}
	}
	for _, a := range actions {
		add(a)
		for _, implied := range Implied(a) {
			add(implied)
		}
	}
	return result
}

// Minimize strips actions already implied by another action in the set,
// leaving the smallest set that expands back to the input.
func Minimize(actions []Action) []Action {
	var result []Action
	for _, a := range actions {
		includedByOther := false
		for _, other := range actions {
			if other != a && Includes(other, a) {
				includedByOther = true
				break
			}
		}
		if !includedByOther {
			result = append(result, a)
		}
	}
	return result
}
