package generator

import (
	"strings"

	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/schema"
)

// GenerateSQL renders the full migration plan for a registry as a script
func GenerateSQL(reg *schema.Registry, d dialect.Dialect) string {
	statements := NewDDLGenerator(d).Generate(reg)

	sqlStatements := make([]string, 0, len(statements))
	for _, stmt := range statements {
		sqlStatements = append(sqlStatements, stmt.Inline(d)+";")
	}

	return strings.Join(sqlStatements, "\n") + "\n"
}
