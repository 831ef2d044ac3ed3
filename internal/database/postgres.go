package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/dialect"
)

// Postgres implements the Database interface for PostgreSQL
type Postgres struct {
	*store
}

// NewPostgres creates a new PostgreSQL database connection
func NewPostgres(config Config, log zerolog.Logger) *Postgres {
	return &Postgres{store: &store{
		name:    "PostgreSQL",
		config:  config,
		dialect: dialect.Postgres{},
		driver:  &pq.Driver{},
		log:     log,
	}}
}

// Connect establishes a connection to PostgreSQL
func (p *Postgres) Connect(ctx context.Context) error {
	return p.open(ctx, p.dsn())
}

func (p *Postgres) dsn() string {
	port := p.config.Port
	if port == "" {
		port = DefaultPort("postgres")
	}

	sslMode := p.config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pqValue(p.config.Host),
		pqValue(port),
		pqValue(p.config.User),
		pqValue(p.config.Password),
		pqValue(p.config.Database),
		pqValue(sslMode),
	)
}

// pqValue quotes a connection string value so spaces and quotes survive
func pqValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)

	return "'" + v + "'"
}
