// Package config loads schemasql settings from a YAML file and overlays
// environment variables and command-line flags.
//
// Precedence, lowest first: Default, the YAML file, SCHEMASQL_* variables,
// flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/filestore"
	"github.com/koustreak/schemasql/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. SCHEMASQL_DATABASE_DSN.
const EnvPrefix = "SCHEMASQL"

type Config struct {
	Database    DatabaseConfig   `yaml:"database"`
	Schemas     SchemasConfig    `yaml:"schemas"`
	ObjectStore filestore.Config `yaml:"objectstore"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

type SchemasConfig struct {
	// Dir is a local directory, an http(s) URL or an s3://bucket/prefix.
	Dir string `yaml:"dir"`

	// StrictRefs fails compilation on an unresolvable $ref instead of
	// skipping the property.
	StrictRefs bool `yaml:"strict_refs"`

	// FetchTimeout bounds each http(s) schema download.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a configuration for a local SQLite file and ./schemas.
func Default() *Config {
	db := database.DefaultConfig(database.DriverSQLite, "file:schemasql.db")
	return &Config{
		Database: DatabaseConfig{
			Driver:          string(db.Driver),
			DSN:             db.DSN,
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			ConnMaxLifetime: db.MaxConnLifetime,
			ConnMaxIdleTime: db.MaxConnIdleTime,
			ConnectTimeout:  db.ConnectTimeout,
			QueryTimeout:    db.QueryTimeout,
		},
		Schemas: SchemasConfig{
			Dir:          "schemas",
			FetchTimeout: 10 * time.Second,
		},
		ObjectStore: filestore.Config{Provider: filestore.ProviderMinIO},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot read config file", err)
	}
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid config file "+path, err)
	}
	return cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if _, err := c.DatabaseConfig().Dialect(); err != nil {
		return err
	}
	if c.Database.DSN == "" && c.Database.Driver != string(database.DriverSQLite) {
		return errs.Newf(errs.ErrKindInvalidInput, "database.dsn is required for %s", c.Database.Driver)
	}
	if c.Schemas.Dir == "" {
		return errs.New(errs.ErrKindInvalidInput, "schemas.dir is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown log.format %q", c.Log.Format)
	}
	if strings.HasPrefix(c.Schemas.Dir, filestore.Scheme+"://") && !c.ObjectStore.Enabled() {
		return errs.New(errs.ErrKindInvalidInput, "schemas.dir is an s3:// location but objectstore.endpoint is empty")
	}
	return nil
}

// DatabaseConfig converts the database section for the drivers.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          database.Driver(c.Database.Driver),
		DSN:             c.Database.DSN,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.ConnMaxLifetime,
		MaxConnIdleTime: c.Database.ConnMaxIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
		QueryTimeout:    c.Database.QueryTimeout,
	}
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	lc.File = c.Log.File
	lc.MaxSizeMB = c.Log.MaxSizeMB
	lc.MaxBackups = c.Log.MaxBackups
	return lc
}

// Keys that may be overridden through the environment or flags.
const (
	KeyDatabaseDriver    = "database.driver"
	KeyDatabaseDSN       = "database.dsn"
	KeySchemasDir        = "schemas.dir"
	KeySchemasStrictRefs = "schemas.strict_refs"
	KeyObjectEndpoint    = "objectstore.endpoint"
	KeyObjectAccessKey   = "objectstore.access_key"
	KeyObjectSecretKey   = "objectstore.secret_key"
	KeyObjectUseSSL      = "objectstore.use_ssl"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyLogFile           = "log.file"
	KeyServerAddr        = "server.addr"
)

var overrideKeys = []string{
	KeyDatabaseDriver, KeyDatabaseDSN,
	KeySchemasDir, KeySchemasStrictRefs,
	KeyObjectEndpoint, KeyObjectAccessKey, KeyObjectSecretKey, KeyObjectUseSSL,
	KeyLogLevel, KeyLogFormat, KeyLogFile,
	KeyServerAddr,
}

// NewViper returns a viper instance reading SCHEMASQL_* variables for every
// override key. Callers bind their flags to the same keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range overrideKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Overlay copies every override key set in v onto c.
func (c *Config) Overlay(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str(KeyDatabaseDriver, &c.Database.Driver)
	str(KeyDatabaseDSN, &c.Database.DSN)
	str(KeySchemasDir, &c.Schemas.Dir)
	flag(KeySchemasStrictRefs, &c.Schemas.StrictRefs)
	str(KeyObjectEndpoint, &c.ObjectStore.Endpoint)
	str(KeyObjectAccessKey, &c.ObjectStore.AccessKey)
	str(KeyObjectSecretKey, &c.ObjectStore.SecretKey)
	flag(KeyObjectUseSSL, &c.ObjectStore.UseSSL)
	str(KeyLogLevel, &c.Log.Level)
	str(KeyLogFormat, &c.Log.Format)
	str(KeyLogFile, &c.Log.File)
	str(KeyServerAddr, &c.Server.Addr)
}
