package generator_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/generator"
	"github.com/koba/tabledef/internal/schema"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `{
	"events": {
		"time": { "type": "time", "not_null": true },
		"kind": { "enum": ["flare", "cme", "o'clock"] },
		"magnitude": {},
		"source": { "references": "sources" },
		"_constraint": "UNIQUE (time, kind)"
	},
	"sources": {
		"label": { "type": "text" }
	}
}`

func registry(t *testing.T, doc string) *schema.Registry {
	t.Helper()

	reg, err := schema.Parse([]byte(doc))
	require.NoError(t, err)

	return reg
}

func TestGenerateSQL(t *testing.T) {
	reg := registry(t, document)

	testCases := []struct {
		name    string
		dialect dialect.Dialect
	}{
		{name: "postgres_plan", dialect: dialect.Postgres{}},
		{name: "mariadb_plan", dialect: dialect.MariaDB{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := goldie.New(t)
			g.Assert(t, tc.name, []byte(generator.GenerateSQL(reg, tc.dialect)))
		})
	}
}

type step struct {
	Kind   generator.StatementKind
	Table  string
	Column string
	Object string
}

func TestGenerateOrder(t *testing.T) {
	reg := registry(t, document)

	var got []step
	for _, s := range generator.NewDDLGenerator(dialect.Postgres{}).Generate(reg) {
		got = append(got, step{Kind: s.Kind, Table: s.Table, Column: s.Column, Object: s.Object})
	}

	want := []step{
		{Kind: generator.CreateTable, Table: "sources", Object: "sources"},
		{Kind: generator.AddColumn, Table: "sources", Column: "label", Object: "sources"},
		{Kind: generator.CreateEnumTable, Table: "events", Column: "kind", Object: "enum_events_kind"},
		{Kind: generator.InsertEnumValues, Table: "events", Column: "kind", Object: "enum_events_kind"},
		{Kind: generator.CreateTable, Table: "events", Object: "events"},
		{Kind: generator.AddColumn, Table: "events", Column: "time", Object: "events"},
		{Kind: generator.AddColumn, Table: "events", Column: "kind", Object: "events"},
		{Kind: generator.AddColumn, Table: "events", Column: "magnitude", Object: "events"},
		{Kind: generator.AddColumn, Table: "events", Column: "source", Object: "events"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateReverseDocumentOrder(t *testing.T) {
	reg := registry(t, `{"a": {"x": {}}, "b": {"y": {}}, "c": {"z": {}}}`)

	var created []string
	for _, s := range generator.NewDDLGenerator(dialect.Postgres{}).Generate(reg) {
		if s.Kind == generator.CreateTable {
			created = append(created, s.Table)
		}
	}

	assert.Equal(t, []string{"c", "b", "a"}, created)
}

func TestEnumArgs(t *testing.T) {
	reg := registry(t, `{"t": {"level": {"enum": ["low", "high"]}}}`)

	statements := generator.NewDDLGenerator(dialect.Postgres{}).Generate(reg)
	require.Len(t, statements, 4)

	insert := statements[1]
	assert.Equal(t, generator.InsertEnumValues, insert.Kind)
	assert.Equal(t, `INSERT INTO "enum_t_level" VALUES ($1), ($2) ON CONFLICT DO NOTHING`, insert.SQL)
	assert.Equal(t, []interface{}{"low", "high"}, insert.Args)
}

func TestInline(t *testing.T) {
	args := make([]interface{}, 11)
	for i := range args {
		args[i] = i + 1
	}
	args[0] = "$2"

	stmt := generator.Statement{
		SQL:  "VALUES ($1), ($2), ($3), ($4), ($5), ($6), ($7), ($8), ($9), ($10), ($11)",
		Args: args,
	}
	assert.Equal(t, "VALUES ('$2'), (2), (3), (4), (5), (6), (7), (8), (9), (10), (11)", stmt.Inline(dialect.Postgres{}))

	stmt = generator.Statement{
		SQL:  "VALUES (?), (?), (?)",
		Args: []interface{}{"a?", nil, true},
	}
	assert.Equal(t, "VALUES ('a?'), (NULL), (TRUE)", stmt.Inline(dialect.SQLite{}))
}

func TestColumnDefinition(t *testing.T) {
	g := generator.NewDDLGenerator(dialect.Postgres{})

	def := g.ColumnDefinition("events", schema.Column{Key: "source", Kind: schema.Reference, References: "sources"})
	assert.Equal(t, "integer", def.Type)
	require.NotNil(t, def.ForeignKey)
	assert.Equal(t, "sources", def.ForeignKey.Table)
	assert.Equal(t, "SET NULL", def.ForeignKey.OnDelete)
	assert.Nil(t, def.EnumRef)

	def = g.ColumnDefinition("events", schema.Column{Key: "kind", Kind: schema.Enum, Enum: []string{"a"}})
	require.NotNil(t, def.EnumRef)
	assert.Equal(t, "enum_events_kind", def.EnumRef.Table)
	assert.Equal(t, "CASCADE", def.EnumRef.OnUpdate)
	assert.Nil(t, def.ForeignKey)
}
