package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/koba/tabledef/internal/schema"
)

// MariaDB targets MariaDB through the MySQL driver. Inline REFERENCES are
// not enforced there, so references become named table constraints, and
// conflicting enum rows are skipped with INSERT IGNORE.
type MariaDB struct{}

func (MariaDB) Name() string { return "mariadb" }

func (MariaDB) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MariaDB) Placeholder(int) string {
	return "?"
}

func (MariaDB) PrimaryKey() string {
	return "`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY"
}

func (MariaDB) TypeName(k schema.Kind) string {
	switch k {
	case schema.Integer, schema.Reference:
		return "INT"
	case schema.Text:
		return "TEXT"
	case schema.Enum:
		return "VARCHAR(255)"
	case schema.Time:
		return "DATETIME(6)"
	default:
		return "DOUBLE"
	}
}

func (d MariaDB) Column(def ColumnDef) (string, []string) {
	clause := d.Quote(def.Name) + " " + def.Type
	if def.NotNull {
		clause += " NOT NULL"
	}

	var constraints []string
	for _, ref := range []*Ref{def.ForeignKey, def.EnumRef} {
		if ref != nil {
			constraints = append(constraints, d.foreignKey(def.Name, ref, false))
		}
	}

	return clause, constraints
}

func (d MariaDB) foreignKey(column string, ref *Ref, ifNotExists bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CONSTRAINT %s FOREIGN KEY ", d.Quote(ref.Name))
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	fmt.Fprintf(&b, "(%s) REFERENCES %s (%s)", d.Quote(column), d.Quote(ref.Table), d.Quote(ref.Column))
	writeActions(&b, ref)

	return b.String()
}

func (d MariaDB) CreateTable(table string, clauses []string) string {
	return createTable(d, table, clauses) + " ENGINE=InnoDB"
}

func (d MariaDB) AddColumn(table string, def ColumnDef) string {
	clause, _ := d.Column(def)
	parts := []string{"ADD COLUMN IF NOT EXISTS " + clause}

	for _, ref := range []*Ref{def.ForeignKey, def.EnumRef} {
		if ref != nil {
			parts = append(parts, "ADD "+d.foreignKey(def.Name, ref, true))
		}
	}

	return fmt.Sprintf("ALTER TABLE %s %s", d.Quote(table), strings.Join(parts, ", "))
}

func (MariaDB) NativeAddColumnIfNotExists() bool { return true }

func (d MariaDB) CreateEnumTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(255) PRIMARY KEY) ENGINE=InnoDB", d.Quote(table), d.Quote("value"))
}

func (d MariaDB) InsertEnumValues(table string, n int) string {
	return fmt.Sprintf("INSERT IGNORE INTO %s VALUES %s", d.Quote(table), numberedPlaceholders(d, n))
}

func (MariaDB) TablesQuery() string {
	return "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"
}

func (MariaDB) ColumnsQuery(table string) (string, []interface{}) {
	query := `
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	return query, []interface{}{table}
}

func (MariaDB) TimeArg(t time.Time) interface{} {
	return t.UTC()
}
