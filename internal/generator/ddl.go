package generator

import (
	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/schema"
)

// StatementKind identifies what a statement does
type StatementKind string

const (
	CreateEnumTable  StatementKind = "CREATE_ENUM_TABLE"
	InsertEnumValues StatementKind = "INSERT_ENUM_VALUES"
	CreateTable      StatementKind = "CREATE_TABLE"
	AddColumn        StatementKind = "ADD_COLUMN"
)

// Statement is one idempotent step of a migration plan
type Statement struct {
	Kind StatementKind
	// Table and Column locate the declaration that produced the statement.
	Table  string
	Column string
	// Object is the table the statement creates or alters.
	Object string
	SQL    string
	Args   []interface{}
}

// DDLGenerator generates the idempotent DDL for a registry
type DDLGenerator struct {
	dialect dialect.Dialect
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(d dialect.Dialect) *DDLGenerator {
	return &DDLGenerator{dialect: d}
}

// Dialect returns the dialect statements are rendered in
func (g *DDLGenerator) Dialect() dialect.Dialect {
	return g.dialect
}

// Generate generates the statements for every table, in creation order
func (g *DDLGenerator) Generate(reg *schema.Registry) []Statement {
	var statements []Statement

	for _, table := range reg.CreationOrder() {
		statements = append(statements, g.GenerateTable(table)...)
	}

	return statements
}

// GenerateTable generates the statements for one table. Enum reference
// tables come first so the column constraints pointing at them resolve,
// then the table itself, then one guarded ADD COLUMN per column so tables
// created by an earlier run pick up newly declared columns.
func (g *DDLGenerator) GenerateTable(table schema.Table) []Statement {
	var statements []Statement

	for _, col := range table.Columns {
		if col.Kind != schema.Enum {
			continue
		}

		enumTable := schema.EnumTableName(table.Name, col.Key)
		statements = append(statements,
			Statement{
				Kind:   CreateEnumTable,
				Table:  table.Name,
				Column: col.Key,
				Object: enumTable,
				SQL:    g.dialect.CreateEnumTable(enumTable),
			},
			Statement{
				Kind:   InsertEnumValues,
				Table:  table.Name,
				Column: col.Key,
				Object: enumTable,
				SQL:    g.dialect.InsertEnumValues(enumTable, len(col.Enum)),
				Args:   enumArgs(col.Enum),
			},
		)
	}

	statements = append(statements, Statement{
		Kind:   CreateTable,
		Table:  table.Name,
		Object: table.Name,
		SQL:    g.generateCreateTable(table),
	})

	for _, col := range table.Columns {
		statements = append(statements, Statement{
			Kind:   AddColumn,
			Table:  table.Name,
			Column: col.Key,
			Object: table.Name,
			SQL:    g.dialect.AddColumn(table.Name, g.ColumnDefinition(table.Name, col)),
		})
	}

	return statements
}

func (g *DDLGenerator) generateCreateTable(table schema.Table) string {
	clauses := []string{g.dialect.PrimaryKey()}

	var constraints []string
	for _, col := range table.Columns {
		clause, cons := g.dialect.Column(g.ColumnDefinition(table.Name, col))
		clauses = append(clauses, clause)
		constraints = append(constraints, cons...)
	}

	clauses = append(clauses, constraints...)

	if table.Constraint != "" {
		clauses = append(clauses, table.Constraint)
	}

	return g.dialect.CreateTable(table.Name, clauses)
}

// ColumnDefinition applies the column rule shared by CREATE TABLE and ADD
// COLUMN: a reference becomes an integer key that is nulled when the target
// row goes away, an enum column points at its reference table and follows
// renames of the allowed values.
func (g *DDLGenerator) ColumnDefinition(table string, col schema.Column) dialect.ColumnDef {
	def := dialect.ColumnDef{
		Name:    col.Key,
		Type:    g.dialect.TypeName(col.Kind),
		NotNull: col.NotNull,
	}

	switch col.Kind {
	case schema.Reference:
		def.ForeignKey = &dialect.Ref{
			Name:     schema.ConstraintName(table, col.Key),
			Table:    col.References,
			Column:   "id",
			OnDelete: "SET NULL",
		}
	case schema.Enum:
		def.EnumRef = &dialect.Ref{
			Name:     schema.ConstraintName(table, col.Key),
			Table:    schema.EnumTableName(table, col.Key),
			Column:   "value",
			OnUpdate: "CASCADE",
		}
	}

	return def
}

func enumArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}

	return args
}
