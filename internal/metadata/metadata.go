// Package metadata renders the public field document of a registry: every
// public column under a tag that is unique across all tables.
package metadata

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/koba/tabledef/internal/schema"
)

// Field describes one publicly queryable column
type Field struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Entry is a field together with where it came from
type Entry struct {
	Tag    string
	Table  string
	Column string
	Field  Field
}

// TableFields holds the entries of one table in column order
type TableFields struct {
	Table   string
	Entries []Entry
}

// Document is the rendered metadata. It is immutable once rendered.
type Document struct {
	tables []TableFields
	index  map[string]Entry
	tags   []string
}

// Render flattens the public columns of reg. Columns of the first table keep
// their key as tag, columns of every later table are tagged
// <table>_<column> whether or not they actually collide.
func Render(reg *schema.Registry) *Document {
	doc := &Document{index: make(map[string]Entry)}

	for i, table := range reg.Tables() {
		fields := TableFields{Table: table.Name}

		for _, col := range table.Columns {
			if !col.IsPublic() {
				continue
			}

			tag := col.Key
			if i > 0 {
				tag = table.Name + "_" + col.Key
			}

			entry := Entry{
				Tag:    tag,
				Table:  table.Name,
				Column: col.Key,
				Field: Field{
					Name:        col.Name,
					Type:        col.Kind.String(),
					Enum:        col.Enum,
					Description: col.Description,
				},
			}

			fields.Entries = append(fields.Entries, entry)

			if _, ok := doc.index[tag]; !ok {
				doc.index[tag] = entry
				doc.tags = append(doc.tags, tag)
			}
		}

		doc.tables = append(doc.tables, fields)
	}

	return doc
}

// Tables returns the rendered tables in document order
func (d *Document) Tables() []TableFields {
	out := make([]TableFields, len(d.tables))
	copy(out, d.tables)

	return out
}

// Lookup returns the entry published under tag
func (d *Document) Lookup(tag string) (Entry, bool) {
	e, ok := d.index[tag]
	return e, ok
}

// Tags returns every public tag in document order
func (d *Document) Tags() []string {
	out := make([]string, len(d.tags))
	copy(out, d.tags)

	return out
}

// MarshalJSON encodes the document as {table: {tag: field}} keeping table
// and column order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for i, table := range d.tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, table.Table); err != nil {
			return nil, err
		}

		buf.WriteByte('{')
		for j, entry := range table.Entries {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, entry.Tag); err != nil {
				return nil, err
			}

			field, err := json.Marshal(entry.Field)
			if err != nil {
				return nil, err
			}
			buf.Write(field)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}

	buf.Write(k)
	buf.WriteByte(':')

	return nil
}
