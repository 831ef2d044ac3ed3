package diff

import (
	"github.com/koba/tabledef/internal/schema"
)

// Action represents the type of change
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionModify Action = "MODIFY"
)

// SchemaDiff represents the schema additions for a table
type SchemaDiff struct {
	TableName     string
	Action        Action
	ColumnChanges []ColumnChange
}

// ColumnChange represents a column that would be added
type ColumnChange struct {
	ColumnName string
	Action     Action
	Column     schema.Column
}

// compareTable returns nil when every declared column exists
func compareTable(table schema.Table, snap *Snapshot) *SchemaDiff {
	live, exists := snap.Tables[table.Name]

	diff := &SchemaDiff{
		TableName: table.Name,
		Action:    ActionModify,
	}
	if !exists {
		diff.Action = ActionAdd
	}

	liveColumns := make(map[string]bool, len(live))
	for _, name := range live {
		liveColumns[name] = true
	}

	for _, col := range table.Columns {
		if liveColumns[col.Key] {
			continue
		}

		diff.ColumnChanges = append(diff.ColumnChanges, ColumnChange{
			ColumnName: col.Key,
			Action:     ActionAdd,
			Column:     col,
		})
	}

	if exists && len(diff.ColumnChanges) == 0 {
		return nil
	}

	return diff
}
