package database

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type startedAtKey struct{}

// queryLogger logs every statement that goes through the wrapped driver
type queryLogger struct {
	log zerolog.Logger
}

func newQueryLogger(log zerolog.Logger) *queryLogger {
	return &queryLogger{log: log}
}

func (h *queryLogger) Before(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, startedAtKey{}, time.Now()), nil
}

func (h *queryLogger) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	event := h.log.Debug().Str("query", compact(query)).Int("args", len(args))
	if startedAt, ok := ctx.Value(startedAtKey{}).(time.Time); ok {
		event = event.Dur("elapsed", time.Since(startedAt))
	}
	event.Msg("query executed")

	return ctx, nil
}

func (h *queryLogger) OnError(_ context.Context, err error, query string, _ ...interface{}) error {
	h.log.Error().Err(err).Str("query", compact(query)).Msg("query failed")

	return err
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
