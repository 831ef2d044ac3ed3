package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/qustavo/sqlhooks/v2"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/errs"
)

// store holds what every backend shares: the pool, the dialect and the
// driver that gets wrapped with the query logger.
type store struct {
	name    string
	config  Config
	dialect dialect.Dialect
	driver  driver.Driver
	log     zerolog.Logger
	db      *sql.DB
}

// connector hands a fixed DSN to a wrapped driver, so the hooked driver
// never has to be registered globally.
type connector struct {
	dsn    string
	driver driver.Driver
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

func (s *store) open(ctx context.Context, dsn string) error {
	const op errs.Op = "database.Connect"

	db := sql.OpenDB(&connector{
		dsn:    dsn,
		driver: sqlhooks.Wrap(s.driver, newQueryLogger(s.log)),
	})

	if s.config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.config.MaxOpenConns)
	}
	if s.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.config.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errs.E(errs.Store, op, fmt.Errorf("failed to ping %s: %w", s.name, err))
	}

	s.db = db
	s.log.Debug().Str("backend", s.name).Msg("connected")

	return nil
}

// Close closes the connection pool
func (s *store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Dialect returns the SQL dialect of the backend
func (s *store) Dialect() dialect.Dialect {
	return s.dialect
}

// BeginTx starts a transaction
func (s *store) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, opts)
}

// QueryContext runs a query on the pool
func (s *store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// GetAllTables retrieves all base table names of the current database
func (s *store) GetAllTables(ctx context.Context) ([]string, error) {
	const op errs.Op = "database.GetAllTables"

	tables, err := s.queryStrings(ctx, s.dialect.TablesQuery())
	if err != nil {
		return nil, errs.E(errs.Store, op, fmt.Errorf("failed to get tables: %w", err))
	}

	return tables, nil
}

// GetTableColumns retrieves the column names of a table in ordinal order
func (s *store) GetTableColumns(ctx context.Context, tableName string) ([]string, error) {
	const op errs.Op = "database.GetTableColumns"

	query, args := s.dialect.ColumnsQuery(tableName)

	columns, err := s.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, errs.E(errs.Store, op, errs.Table(tableName), fmt.Errorf("failed to get columns: %w", err))
	}

	return columns, nil
}

// GetEnumValues retrieves the allowed values stored in an enum table
func (s *store) GetEnumValues(ctx context.Context, tableName string) ([]string, error) {
	const op errs.Op = "database.GetEnumValues"

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		s.dialect.Quote("value"),
		s.dialect.Quote(tableName),
		s.dialect.Quote("value"),
	)

	values, err := s.queryStrings(ctx, query)
	if err != nil {
		return nil, errs.E(errs.Store, op, errs.Table(tableName), fmt.Errorf("failed to get enum values: %w", err))
	}

	return values, nil
}

func (s *store) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}

	return values, rows.Err()
}
