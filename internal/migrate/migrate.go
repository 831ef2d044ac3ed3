// Package migrate applies the generated DDL of a registry to a store in a
// single transaction.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/database"
	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/errs"
	"github.com/koba/tabledef/internal/generator"
	"github.com/koba/tabledef/internal/schema"
)

// Store is the part of a database connection the migrator needs
type Store interface {
	Dialect() dialect.Dialect
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Result summarizes one migration run
type Result struct {
	RunID    string
	Tables   int
	Executed int
	// Skipped counts ADD COLUMN statements elided because the column was
	// already there, on stores without a native guard.
	Skipped int
}

type Migrator struct {
	store     Store
	generator *generator.DDLGenerator
	metrics   *Metrics
	log       zerolog.Logger
}

type Option func(*Migrator)

func WithMetrics(metrics *Metrics) Option {
	return func(m *Migrator) {
		m.metrics = metrics
	}
}

func New(store Store, log zerolog.Logger, opts ...Option) *Migrator {
	m := &Migrator{
		store:     store,
		generator: generator.NewDDLGenerator(store.Dialect()),
		log:       log,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Plan returns the statements Apply executes, in order
func (m *Migrator) Plan(reg *schema.Registry) []generator.Statement {
	return m.generator.Generate(reg)
}

// Apply creates every missing table, enum table, enum value and column of
// the registry in one transaction and stops at the first failing statement,
// whose text the error carries. The transaction is then abandoned. How much
// of the run survives depends on the store: Postgres and SQLite keep none of
// it, MariaDB commits each DDL statement implicitly so tables created before
// the failure remain.
func (m *Migrator) Apply(ctx context.Context, reg *schema.Registry) (*Result, error) {
	const op errs.Op = "migrate.Apply"

	started := time.Now()
	result := &Result{
		RunID:  uuid.New().String(),
		Tables: reg.Len(),
	}

	log := m.log.With().
		Str("run_id", result.RunID).
		Str("dialect", m.store.Dialect().Name()).
		Logger()

	tx, err := m.store.BeginTx(ctx, nil)
	if err != nil {
		m.metrics.run("failure", started)
		return nil, errs.E(errs.Store, op, fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := m.apply(ctx, tx, reg, result, log); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("rolling back migration")
		}
		m.metrics.run("failure", started)

		return nil, err
	}

	if err := tx.Commit(); err != nil {
		m.metrics.run("failure", started)
		return nil, errs.E(errs.Store, op, fmt.Errorf("failed to commit: %w", err))
	}

	m.metrics.run("success", started)

	log.Info().
		Int("tables", result.Tables).
		Int("executed", result.Executed).
		Int("skipped", result.Skipped).
		Dur("elapsed", time.Since(started)).
		Msg("schema applied")

	return result, nil
}

func (m *Migrator) apply(ctx context.Context, tx *sql.Tx, reg *schema.Registry, result *Result, log zerolog.Logger) error {
	const op errs.Op = "migrate.Apply"

	d := m.store.Dialect()

	for _, stmt := range m.generator.Generate(reg) {
		switch stmt.Kind {
		case generator.CreateTable:
			table, _ := reg.Table(stmt.Table)
			log.Info().Str("table", stmt.Table).Int("columns", len(table.Columns)).Msg("ensuring table")
		case generator.InsertEnumValues:
			log.Info().Str("table", stmt.Object).Int("values", len(stmt.Args)).Msg("ensuring enum values")
		}

		if stmt.Kind == generator.AddColumn && !d.NativeAddColumnIfNotExists() {
			exists, err := columnExists(ctx, tx, d, stmt.Object, stmt.Column)
			if err != nil {
				return errs.E(errs.Store, op, errs.Table(stmt.Table), errs.Column(stmt.Column), err)
			}

			if exists {
				result.Skipped++
				m.metrics.statement(string(stmt.Kind), "skipped")
				continue
			}
		}

		if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			log.Error().
				Err(err).
				Str("code", database.ErrorCode(err)).
				Str("table", stmt.Table).
				Str("column", stmt.Column).
				Msg("statement failed")

			return errs.E(errs.Store, op, errs.Table(stmt.Table), errs.Column(stmt.Column), errs.Statement(stmt.SQL), err)
		}

		log.Debug().Str("kind", string(stmt.Kind)).Str("table", stmt.Object).Str("column", stmt.Column).Msg("statement executed")

		result.Executed++
		m.metrics.statement(string(stmt.Kind), "executed")
	}

	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, d dialect.Dialect, table, column string) (bool, error) {
	query, args := d.ColumnsQuery(table)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("failed to scan column: %w", err)
		}

		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}
