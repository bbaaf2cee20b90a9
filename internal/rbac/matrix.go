package rbac

// PermissionTuple is the flat persistence shape of one matrix cell.
type PermissionTuple struct {
	Entity  string `json:"entity"`
	Action  Action `json:"action"`
	Allowed bool   `json:"allowed"`
}

// RowState summarizes an entity row for the editor header checkbox.
type RowState int

const (
	RowNone RowState = iota
	RowSome
	RowAll
)

// Matrix is the editable entity/action grid of a single role. Cells for
// inapplicable actions are never materialized.
type Matrix map[string]map[Action]bool

// NewMatrix builds an all-false matrix covering every applicable cell.
func NewMatrix() Matrix {
	m := make(Matrix, len(Entities))
	for _, e := range Entities {
		row := make(map[Action]bool, len(e.Actions))
		for _, a := range e.Actions {
			row[a] = false
		}
		m[e.Name] = row
	}
	return m
}

// MatrixFromTuples loads a matrix from stored tuples, ignoring tuples whose
// entity/action pair is not in the applicability table.
func MatrixFromTuples(tuples []PermissionTuple) Matrix {
	m := NewMatrix()
	for _, t := range tuples {
		if !ValidAction(t.Entity, t.Action) {
			continue
		}
		m[t.Entity][t.Action] = t.Allowed
	}
	return m
}

// Tuples flattens the matrix into tuples in table order.
func (m Matrix) Tuples() []PermissionTuple {
	var tuples []PermissionTuple
	for _, e := range Entities {
		row := m[e.Name]
		for _, a := range e.Actions {
			tuples = append(tuples, PermissionTuple{Entity: e.Name, Action: a, Allowed: row[a]})
		}
	}
	return tuples
}

// AllowedTuples returns only the granted cells, the shape persisted by the
// role editor.
func (m Matrix) AllowedTuples() []PermissionTuple {
	var tuples []PermissionTuple
	for _, t := range m.Tuples() {
		if t.Allowed {
			tuples = append(tuples, t)
		}
	}
	return tuples
}

// The editor propagates only the delete -> update -> read chain. Every
// other action implies read at evaluation time, but its checkbox stays
// independent: unchecking read leaves create/confirm/etc untouched, and
// checking them does not force read on.
var (
	editorForcesOn = map[Action][]Action{
		ActionDelete: {ActionUpdate, ActionRead},
		ActionUpdate: {ActionRead},
	}
	editorForcesOff = map[Action][]Action{
		ActionRead:   {ActionUpdate, ActionDelete},
		ActionUpdate: {ActionDelete},
	}
)

// Toggle sets one cell and propagates the editor chain within the
// entity. Toggling an inapplicable cell is a no-op.
func (m Matrix) Toggle(entity string, action Action, value bool) {
	row, ok := m[entity]
	if !ok {
		return
	}
	if _, ok := row[action]; !ok {
		return
	}
	row[action] = value
	forced := editorForcesOff[action]
	if value {
		forced = editorForcesOn[action]
	}
	for _, a := range forced {
		if _, ok := row[a]; ok {
			row[a] = value
		}
	}
}

// SetEntity sets every applicable action of the entity to value in one
// operation. Idempotent.
func (m Matrix) SetEntity(entity string, value bool) {
	row, ok := m[entity]
	if !ok {
		return
	}
	for a := range row {
		row[a] = value
	}
}

// RowState computes the tri-state of the entity's header checkbox from the
// current cell values.
func (m Matrix) RowState(entity string) RowState {
	row, ok := m[entity]
	if !ok || len(row) == 0 {
		return RowNone
	}
	granted := 0
	for _, v := range row {
		if v {
			granted++
		}
	}
	switch granted {
	case 0:
		return RowNone
	case len(row):
		return RowAll
	default:
		return RowSome
	}
}
