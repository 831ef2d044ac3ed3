package database

import (
	"context"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"

	"github.com/koba/tabledef/internal/dialect"
)

// SQLite implements the Database interface for a local SQLite file
type SQLite struct {
	*store
}

// NewSQLite creates a new SQLite database connection
func NewSQLite(config Config, log zerolog.Logger) *SQLite {
	// One writer at a time, otherwise concurrent migrations hit SQLITE_BUSY.
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 1
	}

	return &SQLite{store: &store{
		name:    "SQLite",
		config:  config,
		dialect: dialect.SQLite{},
		driver:  &sqlite.Driver{},
		log:     log,
	}}
}

// Connect opens the database file, creating it if needed
func (s *SQLite) Connect(ctx context.Context) error {
	return s.open(ctx, s.dsn())
}

func (s *SQLite) dsn() string {
	return "file:" + s.config.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
