package dialect

import (
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/koba/tabledef/internal/schema"
)

// Postgres is the reference dialect: every idempotent statement form the
// migrator relies on is native.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (Postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (Postgres) PrimaryKey() string {
	return "id SERIAL PRIMARY KEY"
}

func (Postgres) TypeName(k schema.Kind) string {
	switch k {
	case schema.Integer, schema.Reference:
		return "integer"
	case schema.Text, schema.Enum:
		return "text"
	case schema.Time:
		return "timestamp with time zone"
	default:
		return "real"
	}
}

func (d Postgres) Column(def ColumnDef) (string, []string) {
	return inlineColumn(d, def), nil
}

func (d Postgres) CreateTable(table string, clauses []string) string {
	return createTable(d, table, clauses)
}

func (d Postgres) AddColumn(table string, def ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", d.Quote(table), inlineColumn(d, def))
}

func (Postgres) NativeAddColumnIfNotExists() bool { return true }

func (d Postgres) CreateEnumTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (value TEXT PRIMARY KEY)", d.Quote(table))
}

func (d Postgres) InsertEnumValues(table string, n int) string {
	return fmt.Sprintf("INSERT INTO %s VALUES %s ON CONFLICT DO NOTHING", d.Quote(table), numberedPlaceholders(d, n))
}

func (Postgres) TablesQuery() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
}

func (Postgres) ColumnsQuery(table string) (string, []interface{}) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`
	return query, []interface{}{table}
}

func (Postgres) TimeArg(t time.Time) interface{} {
	return t.UTC()
}
