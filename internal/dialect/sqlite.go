package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/koba/tabledef/internal/schema"
)

// SQLite stores time columns as epoch seconds. It has no ADD COLUMN IF NOT
// EXISTS, so the migrator checks pragma_table_info before adding a column.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (SQLite) Placeholder(int) string {
	return "?"
}

func (SQLite) PrimaryKey() string {
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (SQLite) TypeName(k schema.Kind) string {
	switch k {
	case schema.Integer, schema.Reference, schema.Time:
		return "INTEGER"
	case schema.Text, schema.Enum:
		return "TEXT"
	default:
		return "REAL"
	}
}

func (d SQLite) Column(def ColumnDef) (string, []string) {
	return inlineColumn(d, def), nil
}

func (d SQLite) CreateTable(table string, clauses []string) string {
	return createTable(d, table, clauses)
}

func (d SQLite) AddColumn(table string, def ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(table), inlineColumn(d, def))
}

func (SQLite) NativeAddColumnIfNotExists() bool { return false }

func (d SQLite) CreateEnumTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (value TEXT PRIMARY KEY)", d.Quote(table))
}

func (d SQLite) InsertEnumValues(table string, n int) string {
	return fmt.Sprintf("INSERT INTO %s VALUES %s ON CONFLICT DO NOTHING", d.Quote(table), numberedPlaceholders(d, n))
}

func (SQLite) TablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (SQLite) ColumnsQuery(table string) (string, []interface{}) {
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []interface{}{table}
}

func (SQLite) TimeArg(t time.Time) interface{} {
	return t.Unix()
}
