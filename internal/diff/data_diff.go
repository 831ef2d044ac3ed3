package diff

import (
	"github.com/koba/tabledef/internal/schema"
)

// DataDiff represents the rows an enum table is missing
type DataDiff struct {
	TableName    string
	Column       string
	TableMissing bool
	ValuesAdded  []string
}

func compareEnum(table string, col schema.Column, snap *Snapshot) *DataDiff {
	enumTable := schema.EnumTableName(table, col.Key)
	live, exists := snap.Enums[enumTable]

	liveValues := make(map[string]bool, len(live))
	for _, v := range live {
		liveValues[v] = true
	}

	diff := &DataDiff{
		TableName:    enumTable,
		Column:       col.Key,
		TableMissing: !exists,
	}

	for _, v := range col.Enum {
		if !liveValues[v] {
			diff.ValuesAdded = append(diff.ValuesAdded, v)
		}
	}

	if exists && len(diff.ValuesAdded) == 0 {
		return nil
	}

	return diff
}
