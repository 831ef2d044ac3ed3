package generator

import (
	"fmt"
	"strings"

	"github.com/koba/tabledef/internal/dialect"
)

// Inline renders the statement with its arguments substituted as literals,
// for printing a plan. The result is not meant to be executed.
func (s Statement) Inline(d dialect.Dialect) string {
	if len(s.Args) == 0 {
		return s.SQL
	}

	positional := d.Placeholder(1) == d.Placeholder(2)

	var b strings.Builder
	next := 0

	for i := 0; i < len(s.SQL); {
		if positional {
			p := d.Placeholder(1)
			if next < len(s.Args) && strings.HasPrefix(s.SQL[i:], p) {
				b.WriteString(formatValue(s.Args[next]))
				next++
				i += len(p)
				continue
			}
		} else if n, width := matchNumbered(d, s.SQL[i:], len(s.Args)); n > 0 {
			b.WriteString(formatValue(s.Args[n-1]))
			i += width
			continue
		}

		b.WriteByte(s.SQL[i])
		i++
	}

	return b.String()
}

// matchNumbered finds the longest numbered placeholder at the start of sql.
func matchNumbered(d dialect.Dialect, sql string, count int) (int, int) {
	for n := count; n >= 1; n-- {
		p := d.Placeholder(n)
		if strings.HasPrefix(sql, p) {
			return n, len(p)
		}
	}

	return 0, 0
}

func formatValue(val interface{}) string {
	if val == nil {
		return "NULL"
	}

	switch v := val.(type) {
	case string:
		escaped := strings.ReplaceAll(v, "'", "''")
		return fmt.Sprintf("'%s'", escaped)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("'%v'", v)
	}
}
