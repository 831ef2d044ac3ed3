package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/koba/tabledef/internal/database"
)

const (
	defaultExtension = "yaml"
	defaultTagName   = "yaml"
)

type Binder interface {
	Bind(v *viper.Viper) error
}

type Loader interface {
	Load(name, path, envPrefix string, binder Binder) (Config, error)
}

type Config struct {
	LogLevel string   `yaml:"log_level"`
	Schema   Schema   `yaml:"schema"`
	Metadata Metadata `yaml:"metadata"`
	Store    Store    `yaml:"store"`
	Query    Query    `yaml:"query"`
	Server   Server   `yaml:"server"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.Required, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.Schema, validation.Required),
		validation.Field(&c.Metadata),
		validation.Field(&c.Store, validation.Required),
		validation.Field(&c.Query, validation.Required),
		validation.Field(&c.Server),
	)
}

type Schema struct {
	Path string `yaml:"path"`
}

func (s Schema) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Path, validation.Required),
	)
}

type Metadata struct {
	Output string `yaml:"output"`
	GCS    GCS    `yaml:"gcs"`
}

func (m Metadata) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.GCS),
	)
}

type GCS struct {
	Bucket      string `yaml:"bucket"`
	Object      string `yaml:"object"`
	Endpoint    string `yaml:"endpoint"`
	DisableAuth bool   `yaml:"disable_auth"`
}

func (g GCS) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Object, validation.When(g.Bucket != "", validation.Required)),
		validation.Field(&g.Endpoint, is.URL),
	)
}

type Store struct {
	Driver             string `yaml:"driver"`
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	Database           string `yaml:"database"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	SSLMode            string `yaml:"ssl_mode"`
	Path               string `yaml:"path"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections"`
}

func (s Store) isSQLite() bool {
	driver := strings.ToLower(s.Driver)
	return driver == "sqlite" || driver == "sqlite3"
}

func (s Store) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In("postgres", "postgresql", "mariadb", "mysql", "sqlite", "sqlite3")),
		validation.Field(&s.Path, validation.When(s.isSQLite(), validation.Required)),
		validation.Field(&s.Host, validation.When(!s.isSQLite(), validation.Required)),
		validation.Field(&s.Database, validation.When(!s.isSQLite(), validation.Required)),
		validation.Field(&s.Port, is.Port),
		validation.Field(&s.SSLMode, validation.In("disable", "allow", "prefer", "require", "verify-ca", "verify-full")),
		validation.Field(&s.MaxOpenConnections, validation.Min(0)),
		validation.Field(&s.MaxIdleConnections, validation.Min(0)),
	)
}

// DatabaseConfig converts the section into a connection configuration
func (s Store) DatabaseConfig() database.Config {
	return database.Config{
		Type:         s.Driver,
		Host:         s.Host,
		Port:         s.Port,
		Database:     s.Database,
		User:         s.User,
		Password:     s.Password,
		SSLMode:      s.SSLMode,
		Path:         s.Path,
		MaxOpenConns: s.MaxOpenConnections,
		MaxIdleConns: s.MaxIdleConnections,
	}
}

type Query struct {
	View       string `yaml:"view"`
	TimeColumn string `yaml:"time_column"`
}

func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.View, validation.Required),
		validation.Field(&q.TimeColumn, validation.Required),
	)
}

type Server struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, is.IP),
		validation.Field(&s.Port, is.Port),
	)
}

// ListenAddr returns the address the HTTP server binds to
func (s Server) ListenAddr() string {
	return net.JoinHostPort(s.Address, s.Port)
}

type FileParts struct {
	FileName string
	Path     string
}

func ProcessConfigPath(configFile string) (FileParts, error) {
	absolutePath, err := filepath.Abs(configFile)
	if err != nil {
		return FileParts{}, fmt.Errorf("convert to absolute path: %w", err)
	}

	fileName := filepath.Base(absolutePath)
	path := filepath.Dir(absolutePath)
	extension := filepath.Ext(fileName)

	if strings.ReplaceAll(strings.ToLower(extension), ".", "") != defaultExtension {
		return FileParts{}, fmt.Errorf("config file must have extension %s, got: %s", defaultExtension, extension)
	}

	return FileParts{
		FileName: fileName[:len(fileName)-len(extension)],
		Path:     path,
	}, nil
}

func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

type FileSystemLoader struct{}

func (fs *FileSystemLoader) Load(name, path, envPrefix string, b Binder) (Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType(defaultExtension)

	v.SetDefault("log_level", "info")
	v.SetDefault("query.view", "events.default_view")
	v.SetDefault("query.time_column", "time")
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", "8080")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if b != nil {
		err := b.Bind(v)
		if err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)

	err := v.ReadInConfig()
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var config Config

	err = v.Unmarshal(&config, func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = defaultTagName
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

type EnvBinder struct {
	binders map[string]string
}

func (e *EnvBinder) Bind(v *viper.Viper) error {
	for envVar, key := range e.binders {
		err := v.BindEnv(key, envVar)
		if err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}

	return nil
}

func NewEnvBinder(binders map[string]string) *EnvBinder {
	return &EnvBinder{
		binders: binders,
	}
}

// NewDefaultEnvBinder binds the conventional database variables
func NewDefaultEnvBinder() *EnvBinder {
	return NewEnvBinder(map[string]string{
		"DB_TYPE":     "store.driver",
		"DB_HOST":     "store.host",
		"DB_PORT":     "store.port",
		"DB_NAME":     "store.database",
		"DB_USER":     "store.user",
		"DB_PASSWORD": "store.password",
	})
}
