package schema

// Registry holds the loaded table definitions. It is built once by Load and
// never mutated afterwards; accessors return fresh slices.
type Registry struct {
	tables   []Table
	index    map[string]int
	creation []int
}

// Tables returns the tables in document order
func (r *Registry) Tables() []Table {
	out := make([]Table, len(r.tables))
	copy(out, r.tables)

	return out
}

// Reverse returns the tables in reverse document order
func (r *Registry) Reverse() []Table {
	out := make([]Table, 0, len(r.tables))
	for i := len(r.tables) - 1; i >= 0; i-- {
		out = append(out, r.tables[i])
	}

	return out
}

// CreationOrder returns the order tables must be created in. It is the
// reverse document order, except that a referenced table is moved in front
// of any table that points at it.
func (r *Registry) CreationOrder() []Table {
	out := make([]Table, 0, len(r.creation))
	for _, i := range r.creation {
		out = append(out, r.tables[i])
	}

	return out
}

// Table looks up a table by name
func (r *Registry) Table(name string) (Table, bool) {
	i, ok := r.index[name]
	if !ok {
		return Table{}, false
	}

	return r.tables[i], true
}

// Len returns the number of tables
func (r *Registry) Len() int {
	return len(r.tables)
}
