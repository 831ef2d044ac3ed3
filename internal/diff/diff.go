package diff

import (
	"context"
	"fmt"
	"io"

	"github.com/koba/tabledef/internal/schema"
)

// Inspector reads the live state of a store
type Inspector interface {
	GetAllTables(ctx context.Context) ([]string, error)
	GetTableColumns(ctx context.Context, tableName string) ([]string, error)
	GetEnumValues(ctx context.Context, tableName string) ([]string, error)
}

// Snapshot is the part of a live store the registry describes
type Snapshot struct {
	Tables map[string][]string
	Enums  map[string][]string
}

// DiffResult holds what a migration would add, in creation order
type DiffResult struct {
	SchemaDiffs []*SchemaDiff
	DataDiffs   []*DataDiff
}

// Empty reports whether the store already matches the registry
func (r *DiffResult) Empty() bool {
	return len(r.SchemaDiffs) == 0 && len(r.DataDiffs) == 0
}

// Inspect captures the live tables, columns and enum values of the tables
// declared in reg. Tables the registry does not know are ignored.
func Inspect(ctx context.Context, inspector Inspector, reg *schema.Registry) (*Snapshot, error) {
	tables, err := inspector.GetAllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	existing := make(map[string]bool, len(tables))
	for _, t := range tables {
		existing[t] = true
	}

	snap := &Snapshot{
		Tables: make(map[string][]string),
		Enums:  make(map[string][]string),
	}

	for _, table := range reg.Tables() {
		if existing[table.Name] {
			columns, err := inspector.GetTableColumns(ctx, table.Name)
			if err != nil {
				return nil, err
			}
			snap.Tables[table.Name] = columns
		}

		for _, col := range table.Columns {
			if col.Kind != schema.Enum {
				continue
			}

			enumTable := schema.EnumTableName(table.Name, col.Key)
			if !existing[enumTable] {
				continue
			}

			values, err := inspector.GetEnumValues(ctx, enumTable)
			if err != nil {
				return nil, err
			}
			snap.Enums[enumTable] = values
		}
	}

	return snap, nil
}

// Compare lists every table, column and enum value of reg missing from snap.
// Objects present in the store but not in the registry are never reported.
func Compare(reg *schema.Registry, snap *Snapshot) *DiffResult {
	result := &DiffResult{}

	for _, table := range reg.CreationOrder() {
		for _, col := range table.Columns {
			if col.Kind != schema.Enum {
				continue
			}

			if dataDiff := compareEnum(table.Name, col, snap); dataDiff != nil {
				result.DataDiffs = append(result.DataDiffs, dataDiff)
			}
		}

		if schemaDiff := compareTable(table, snap); schemaDiff != nil {
			result.SchemaDiffs = append(result.SchemaDiffs, schemaDiff)
		}
	}

	return result
}

// Display prints the diff result in a human-readable format
func Display(w io.Writer, result *DiffResult) {
	if result.Empty() {
		fmt.Fprintln(w, "No differences found.")
		return
	}

	if len(result.SchemaDiffs) > 0 {
		fmt.Fprintln(w, "=== Schema Differences ===")
		fmt.Fprintln(w)
		for _, schemaDiff := range result.SchemaDiffs {
			displaySchemaDiff(w, schemaDiff)
		}
	}

	if len(result.DataDiffs) > 0 {
		fmt.Fprintln(w, "=== Enum Differences ===")
		fmt.Fprintln(w)
		for _, dataDiff := range result.DataDiffs {
			displayDataDiff(w, dataDiff)
		}
	}
}

func displaySchemaDiff(w io.Writer, diff *SchemaDiff) {
	fmt.Fprintf(w, "Table: %s\n", diff.TableName)

	switch diff.Action {
	case ActionAdd:
		fmt.Fprintf(w, "  Action: ADD (new table)\n")
		fmt.Fprintf(w, "  Columns: %d\n", len(diff.ColumnChanges))
	case ActionModify:
		fmt.Fprintf(w, "  Action: MODIFY\n")
		fmt.Fprintf(w, "  Column changes:\n")
		for _, change := range diff.ColumnChanges {
			fmt.Fprintf(w, "    - %s: %s\n", change.ColumnName, change.Action)
		}
	}
	fmt.Fprintln(w)
}

func displayDataDiff(w io.Writer, diff *DataDiff) {
	fmt.Fprintf(w, "Table: %s\n", diff.TableName)
	if diff.TableMissing {
		fmt.Fprintf(w, "  Action: ADD (new enum table)\n")
	}
	fmt.Fprintf(w, "  Values added: %d\n", len(diff.ValuesAdded))
	for _, v := range diff.ValuesAdded {
		fmt.Fprintf(w, "    + %s\n", v)
	}
	fmt.Fprintln(w)
}
