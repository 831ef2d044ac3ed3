package database

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/tabledef/internal/errs"
)

func TestNewDatabase(t *testing.T) {
	testCases := []struct {
		dbType  string
		dialect string
	}{
		{dbType: "postgres", dialect: "postgres"},
		{dbType: "PostgreSQL", dialect: "postgres"},
		{dbType: "mysql", dialect: "mariadb"},
		{dbType: "mariadb", dialect: "mariadb"},
		{dbType: "sqlite", dialect: "sqlite"},
	}

	for _, tc := range testCases {
		t.Run(tc.dbType, func(t *testing.T) {
			db, err := NewDatabase(Config{Type: tc.dbType}, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tc.dialect, db.Dialect().Name())
		})
	}

	_, err := NewDatabase(Config{Type: "oracle"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errs.KindIs(errs.Config, err))
}

func TestPostgresDSN(t *testing.T) {
	p := NewPostgres(Config{
		Host:     "localhost",
		Database: "events",
		User:     "omni",
		Password: `it's a \secret`,
	}, zerolog.Nop())

	assert.Equal(t,
		`host='localhost' port='5432' user='omni' password='it\'s a \\secret' dbname='events' sslmode='disable'`,
		p.dsn(),
	)
}

func TestMySQLDSN(t *testing.T) {
	m := NewMySQL(Config{
		Host:     "db",
		Port:     "3307",
		Database: "events",
		User:     "omni",
		Password: "secret",
	}, zerolog.Nop())

	assert.Equal(t, "omni:secret@tcp(db:3307)/events?parseTime=true", m.dsn())
}

func TestSQLiteIntrospection(t *testing.T) {
	ctx := context.Background()

	db := NewSQLite(Config{Path: filepath.Join(t.TempDir(), "events.db")}, zerolog.Nop())
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE enum_events_kind (value TEXT PRIMARY KEY)`,
		`INSERT INTO enum_events_kind VALUES ('flare'), ('cme')`,
		`CREATE TABLE events (id INTEGER PRIMARY KEY AUTOINCREMENT, time INTEGER, kind TEXT REFERENCES enum_events_kind)`,
	} {
		_, err := db.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	tables, err := db.GetAllTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"enum_events_kind", "events"}, tables)

	columns, err := db.GetTableColumns(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "time", "kind"}, columns)

	values, err := db.GetEnumValues(ctx, "enum_events_kind")
	require.NoError(t, err)
	assert.Equal(t, []string{"cme", "flare"}, values)

	_, err = db.GetEnumValues(ctx, "enum_missing")
	require.Error(t, err)
	assert.True(t, errs.KindIs(errs.Store, err))
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "SELECT a FROM b WHERE c = $1", compact("\n\t\tSELECT a\n\t\tFROM b\n\t\tWHERE c = $1\n\t"))
}

func TestErrorCode(t *testing.T) {
	ctx := context.Background()

	db := NewSQLite(Config{Path: filepath.Join(t.TempDir(), "codes.db")}, zerolog.Nop())
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { _ = db.Close() })

	_, err := db.db.ExecContext(ctx, `CREATE TABLE sources (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx, `INSERT INTO sources VALUES (1), (1)`)
	require.Error(t, err)

	testCases := []struct {
		name   string
		err    error
		expect string
	}{
		{name: "postgres", err: &pq.Error{Code: "23505"}, expect: "23505"},
		{name: "mariadb", err: &mysql.MySQLError{Number: 1062}, expect: "1062"},
		{name: "wrapped", err: errs.E(errs.Store, errs.Op("migrate.Apply"), &pq.Error{Code: "42P01"}), expect: "42P01"},
		{name: "plain", err: errors.New("boom"), expect: ""},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, ErrorCode(tc.err))
		})
	}

	assert.NotEmpty(t, ErrorCode(err))
}

func TestQueryLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	h := newQueryLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	ctx, err := h.Before(context.Background(), "SELECT 1")
	require.NoError(t, err)
	_, err = h.After(ctx, "SELECT\n\t1", 7)
	require.NoError(t, err)

	failure := errors.New("no such table: events")
	assert.Equal(t, failure, h.OnError(ctx, failure, "SELECT * FROM events"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	assert.Contains(t, string(lines[0]), `"level":"debug"`)
	assert.Contains(t, string(lines[0]), `"query":"SELECT 1"`)
	assert.Contains(t, string(lines[0]), `"elapsed"`)
	assert.Contains(t, string(lines[1]), `"level":"error"`)
	assert.Contains(t, string(lines[1]), `"error":"no such table: events"`)
}
