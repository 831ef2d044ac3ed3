package schema

// Kind is the semantic type of a column, resolved once when the registry is
// loaded. Every consumer switches over the same closed set.
type Kind int

const (
	Real Kind = iota
	Integer
	Text
	Time
	Enum
	Reference
)

// String returns the type tag used in the source document and in the
// public metadata document.
func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Text:
		return "text"
	case Time:
		return "time"
	case Enum:
		return "enum"
	case Reference:
		return "reference"
	default:
		return "real"
	}
}

// Visibility controls whether a column is exposed as a public field.
type Visibility int

const (
	Public Visibility = iota
	Internal
)

// Column represents a declared column
type Column struct {
	Key         string
	Name        string
	Kind        Kind
	Enum        []string
	References  string
	NotNull     bool
	Description string
	Visibility  Visibility
	Line        int
}

// IsPublic reports whether the column belongs in the metadata document
func (c Column) IsPublic() bool {
	return c.Visibility == Public
}

// Table represents a declared table
type Table struct {
	Name    string
	Columns []Column
	// Constraint is a raw clause appended verbatim to CREATE TABLE.
	Constraint string
	// Annotations holds the remaining non-column keys of the table.
	Annotations map[string]string
	Line        int
}

// Column looks up a column by key
func (t Table) Column(key string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Key == key {
			return c, true
		}
	}

	return Column{}, false
}

// References returns the distinct tables this table points at, in column
// order, excluding itself.
func (t Table) References() []string {
	var refs []string
	seen := map[string]bool{}

	for _, c := range t.Columns {
		if c.Kind != Reference || c.References == t.Name || seen[c.References] {
			continue
		}

		seen[c.References] = true
		refs = append(refs, c.References)
	}

	return refs
}

// EnumTableName returns the reference table backing an enum column
func EnumTableName(table, column string) string {
	return "enum_" + table + "_" + column
}

// ConstraintName returns the foreign key constraint name of a reference or
// enum column, cut to the longest name every supported store accepts.
func ConstraintName(table, column string) string {
	name := "fk_" + table + "_" + column
	if len(name) > maxConstraintLength {
		name = name[:maxConstraintLength]
	}

	return name
}
