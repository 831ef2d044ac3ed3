// Package query reads time windows of rows from the public view.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/dialect"
	"github.com/koba/tabledef/internal/errs"
	"github.com/koba/tabledef/internal/metadata"
)

// Store is the part of a database connection the service reads through
type Store interface {
	Dialect() dialect.Dialect
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Window bounds a selection. From is inclusive, To is exclusive, a nil bound
// leaves that side open. Fields projects the result onto public tags.
type Window struct {
	From   *time.Time
	To     *time.Time
	Fields []string
}

// Result holds rows in ascending time order and the names of their columns
type Result struct {
	Fields []string        `json:"fields"`
	Rows   [][]interface{} `json:"data"`
}

type Service struct {
	store      Store
	view       string
	timeColumn string
	fields     *metadata.Document
	duration   *prometheus.HistogramVec
	log        zerolog.Logger
}

type Option func(*Service)

// WithFields restricts projections to the public tags of doc
func WithFields(doc *metadata.Document) Option {
	return func(s *Service) {
		s.fields = doc
	}
}

// WithMetrics observes the duration of every selection
func WithMetrics(duration *prometheus.HistogramVec) Option {
	return func(s *Service) {
		s.duration = duration
	}
}

// NewDurationMetric returns the histogram expected by WithMetrics
func NewDurationMetric() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tabledef",
		Name:      "query_duration_seconds",
		Help:      "Duration of time window selections.",
	}, []string{"outcome"})
}

func New(store Store, view, timeColumn string, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		view:       view,
		timeColumn: timeColumn,
		log:        log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SelectWindow returns the rows of the view inside w, ordered by time
func (s *Service) SelectWindow(ctx context.Context, w Window) (result *Result, err error) {
	const op errs.Op = "query.SelectWindow"

	started := time.Now()
	defer func() {
		if s.duration == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.duration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	}()

	if err := s.validateFields(w.Fields); err != nil {
		return nil, errs.E(errs.InvalidRequest, op, err)
	}

	query, args := s.buildQuery(w)

	rows, err := s.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.E(errs.Store, op, errs.Statement(query), err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, errs.E(errs.Store, op, errs.Statement(query), fmt.Errorf("failed to get columns: %w", err))
	}

	data := [][]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(names))
		valuePtrs := make([]interface{}, len(names))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errs.E(errs.Store, op, errs.Statement(query), fmt.Errorf("failed to scan row: %w", err))
		}

		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}

		data = append(data, values)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.Store, op, errs.Statement(query), err)
	}

	s.log.Debug().Int("rows", len(data)).Dur("elapsed", time.Since(started)).Msg("window selected")

	return &Result{Fields: names, Rows: data}, nil
}

func (s *Service) validateFields(fields []string) error {
	for _, f := range fields {
		if f == s.timeColumn {
			continue
		}

		if s.fields == nil {
			return fmt.Errorf("field %q is not queryable", f)
		}

		if _, ok := s.fields.Lookup(f); !ok {
			return fmt.Errorf("unknown field %q", f)
		}
	}

	return nil
}

func (s *Service) buildQuery(w Window) (string, []interface{}) {
	d := s.store.Dialect()
	timeColumn := d.Quote(s.timeColumn)

	columns := "*"
	if len(w.Fields) > 0 {
		quoted := make([]string, len(w.Fields))
		for i, f := range w.Fields {
			quoted[i] = d.Quote(f)
		}
		columns = strings.Join(quoted, ", ")
	}

	var conditions []string
	var args []interface{}

	if w.From != nil {
		args = append(args, d.TimeArg(*w.From))
		conditions = append(conditions, fmt.Sprintf("%s >= %s", timeColumn, d.Placeholder(len(args))))
	}

	if w.To != nil {
		args = append(args, d.TimeArg(*w.To))
		conditions = append(conditions, fmt.Sprintf("%s < %s", timeColumn, d.Placeholder(len(args))))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columns, dialect.QuoteQualified(d, s.view))
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + timeColumn

	return query, args
}
