package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/errs"
)

// Config holds database connection configuration
type Config struct {
	Type     string // "postgres", "mariadb"/"mysql" or "sqlite"
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
	// Path is the database file for sqlite
	Path string

	MaxOpenConns int
	MaxIdleConns int
}

// Database interface defines operations for database connections
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	Dialect() dialect.Dialect
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	GetAllTables(ctx context.Context) ([]string, error)
	GetTableColumns(ctx context.Context, tableName string) ([]string, error)
	GetEnumValues(ctx context.Context, tableName string) ([]string, error)
}

// NewDatabase creates a new database connection based on type
func NewDatabase(config Config, log zerolog.Logger) (Database, error) {
	const op errs.Op = "database.NewDatabase"

	switch strings.ToLower(config.Type) {
	case "mysql", "mariadb":
		return NewMySQL(config, log), nil
	case "postgres", "postgresql":
		return NewPostgres(config, log), nil
	case "sqlite", "sqlite3":
		return NewSQLite(config, log), nil
	default:
		return nil, errs.E(errs.Config, op, fmt.Errorf("unsupported database type: %s", config.Type))
	}
}

// DefaultPort returns the conventional port of a database type
func DefaultPort(dbType string) string {
	switch strings.ToLower(dbType) {
	case "mysql", "mariadb":
		return "3306"
	case "postgres", "postgresql":
		return "5432"
	default:
		return ""
	}
}
