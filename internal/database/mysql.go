package database

import (
	"context"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/dialect"
)

// MySQL implements the Database interface for MariaDB and MySQL
type MySQL struct {
	*store
}

// NewMySQL creates a new MariaDB/MySQL database connection
func NewMySQL(config Config, log zerolog.Logger) *MySQL {
	return &MySQL{store: &store{
		name:    "MariaDB",
		config:  config,
		dialect: dialect.MariaDB{},
		driver:  &mysql.MySQLDriver{},
		log:     log,
	}}
}

// Connect establishes a connection to MariaDB
func (m *MySQL) Connect(ctx context.Context) error {
	return m.open(ctx, m.dsn())
}

func (m *MySQL) dsn() string {
	port := m.config.Port
	if port == "" {
		port = DefaultPort("mysql")
	}

	cfg := mysql.NewConfig()
	cfg.User = m.config.User
	cfg.Passwd = m.config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.config.Host, port)
	cfg.DBName = m.config.Database
	cfg.ParseTime = true

	return cfg.FormatDSN()
}
