// Package dialect renders the store specific SQL fragments used by the DDL
// generator, the migrator and the row query service.
package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/koba/tabledef/internal/schema"
)

// Ref is a foreign key from a column to another table's primary key.
type Ref struct {
	// Name is the constraint name, used by dialects that cannot declare
	// references inline.
	Name     string
	Table    string
	Column   string
	OnDelete string
	OnUpdate string
}

// ColumnDef is the store independent shape of a column definition. The same
// value renders both the CREATE TABLE clause and the ADD COLUMN clause.
type ColumnDef struct {
	Name       string
	Type       string
	NotNull    bool
	ForeignKey *Ref
	EnumRef    *Ref
}

// Dialect renders SQL for one kind of relational store.
type Dialect interface {
	Name() string
	Quote(ident string) string
	Placeholder(n int) string

	// PrimaryKey returns the clause of the synthetic auto-incrementing key.
	PrimaryKey() string
	TypeName(k schema.Kind) string

	// Column returns the column clause and any table level constraints
	// the column needs.
	Column(def ColumnDef) (string, []string)
	CreateTable(table string, clauses []string) string
	AddColumn(table string, def ColumnDef) string
	// NativeAddColumnIfNotExists is false when AddColumn cannot skip an
	// existing column by itself and the caller has to check first.
	NativeAddColumnIfNotExists() bool

	CreateEnumTable(table string) string
	InsertEnumValues(table string, n int) string

	// TablesQuery lists the base tables of the current database.
	TablesQuery() string
	ColumnsQuery(table string) (string, []interface{})

	// TimeArg converts a time bound into a query argument.
	TimeArg(t time.Time) interface{}
}

// For returns the dialect registered under name
func For(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mariadb", "mysql":
		return MariaDB{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}

	return nil, fmt.Errorf("unsupported dialect: %s", name)
}

// QuoteQualified quotes every dot separated part of a name
func QuoteQualified(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}

	return strings.Join(parts, ".")
}

func numberedPlaceholders(d Dialect, n int) string {
	values := make([]string, n)
	for i := range values {
		values[i] = "(" + d.Placeholder(i+1) + ")"
	}

	return strings.Join(values, ", ")
}

// inlineColumn renders a column with its references declared inline, the
// form shared by Postgres and SQLite.
func inlineColumn(d Dialect, def ColumnDef) string {
	var b strings.Builder

	b.WriteString(d.Quote(def.Name))
	b.WriteString(" ")
	b.WriteString(def.Type)

	if fk := def.ForeignKey; fk != nil {
		b.WriteString(" REFERENCES ")
		b.WriteString(d.Quote(fk.Table))
		writeActions(&b, fk)
	}

	if def.NotNull {
		b.WriteString(" NOT NULL")
	}

	if ref := def.EnumRef; ref != nil {
		b.WriteString(" REFERENCES ")
		b.WriteString(d.Quote(ref.Table))
		writeActions(&b, ref)
	}

	return b.String()
}

func writeActions(b *strings.Builder, ref *Ref) {
	if ref.OnDelete != "" {
		b.WriteString(" ON DELETE ")
		b.WriteString(ref.OnDelete)
	}

	if ref.OnUpdate != "" {
		b.WriteString(" ON UPDATE ")
		b.WriteString(ref.OnUpdate)
	}
}

func createTable(d Dialect, table string, clauses []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Quote(table), strings.Join(clauses, ",\n\t"))
}
