// Package config loads sqlgrid settings from a YAML file, optional .env
// files and SQLGRID_* environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/sqlgrid/internal/configtable"
	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/dialect"
	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/koustreak/sqlgrid/internal/filestore"
	"github.com/koustreak/sqlgrid/internal/logger"
	"github.com/koustreak/sqlgrid/internal/rpc"
)

// Config is the full sqlgrid configuration.
type Config struct {
	Log      logger.Config   `yaml:"log"`
	Database database.Config `yaml:"database"`

	// Dialect names the server behind a remote backend. Direct drivers
	// pick their own dialect when it is empty.
	Dialect string `yaml:"dialect"`

	Server      ServerConfig      `yaml:"server"`
	RPC         RPCConfig         `yaml:"rpc"`
	Editor      EditorConfig      `yaml:"editor"`
	ConfigTable ConfigTableConfig `yaml:"configTable"`
	Export      ExportConfig      `yaml:"export"`
}

// ServerConfig is the HTTP listener of the editor host.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RPCConfig is the statement dispatcher served by sqlgrid-server.
type RPCConfig struct {
	Addr         string `yaml:"addr"`
	DeletePolicy string `yaml:"deletePolicy"`
}

// EditorConfig holds the table editor options a host can set.
type EditorConfig struct {
	// Tables is the list offered by the table selector.
	Tables           []string          `yaml:"tables"`
	NoPrimaryKeyEdit *bool             `yaml:"noPrimaryKeyEdit"`
	OrderBy          string            `yaml:"orderBy"`
	DefaultValues    map[string]string `yaml:"defaultValues"`
	GridOptions      map[string]any    `yaml:"gridOptions"`
}

// ConfigTableConfig enables the config table editor when Table is set.
type ConfigTableConfig struct {
	Table               string `yaml:"table"`
	configtable.Options `yaml:",inline"`
}

// ExportConfig enables snapshot export when Enabled is set.
type ExportConfig struct {
	Enabled          bool `yaml:"enabled"`
	filestore.Config `yaml:",inline"`
}

// Default returns production defaults: a local SQLite file served on
// :8080, the dispatcher on :8081.
func Default() *Config {
	return &Config{
		Log:      *logger.DefaultConfig(),
		Database: *database.DefaultConfig(database.DriverSQLite, "sqlgrid.db"),
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		RPC: RPCConfig{
			Addr:         ":8081",
			DeletePolicy: rpc.PolicyAllow,
		},
		ConfigTable: ConfigTableConfig{Options: configtable.DefaultOptions()},
		Export:      ExportConfig{Config: *filestore.DefaultConfig("localhost:9000", "", "")},
	}
}

// Load reads path (skipped when empty) over the defaults, applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errs.Wrap(errs.ErrKindNotFound, "config file not found", err)
			}
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config file", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadEnvFiles(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to load env file", err)
	}
	return nil
}

// ApplyEnv overrides fields from SQLGRID_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var err error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = errs.Wrap(errs.ErrKindInvalidInput, key+" must be a boolean", perr)
				return
			}
			*dst = b
		}
	}

	str("SQLGRID_LOG_LEVEL", &c.Log.Level)
	str("SQLGRID_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("SQLGRID_DB_DRIVER"); ok {
		c.Database.Driver = database.Driver(v)
	}
	str("SQLGRID_DB_DSN", &c.Database.DSN)
	str("SQLGRID_DIALECT", &c.Dialect)
	boolean("SQLGRID_DB_COMPRESS", &c.Database.Compress)

	str("SQLGRID_SERVER_ADDR", &c.Server.Addr)
	str("SQLGRID_RPC_ADDR", &c.RPC.Addr)
	str("SQLGRID_DELETE_POLICY", &c.RPC.DeletePolicy)

	if v, ok := lookup("SQLGRID_TABLES"); ok {
		c.Editor.Tables = splitList(v)
	}
	str("SQLGRID_ORDER_BY", &c.Editor.OrderBy)
	str("SQLGRID_CONFIG_TABLE", &c.ConfigTable.Table)

	boolean("SQLGRID_EXPORT_ENABLED", &c.Export.Enabled)
	str("SQLGRID_EXPORT_ENDPOINT", &c.Export.Endpoint)
	str("SQLGRID_EXPORT_ACCESS_KEY", &c.Export.AccessKey)
	str("SQLGRID_EXPORT_SECRET_KEY", &c.Export.SecretKey)
	str("SQLGRID_EXPORT_BUCKET", &c.Export.Bucket)
	boolean("SQLGRID_EXPORT_USE_SSL", &c.Export.UseSSL)

	return err
}

// Validate checks the settings the binaries rely on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverMySQL, database.DriverPostgres, database.DriverRemote:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errs.New(errs.ErrKindInvalidInput, "database dsn is required")
	}
	if c.Dialect != "" {
		if _, err := dialect.Lookup(c.Dialect); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "invalid dialect", err)
		}
	}

	for _, t := range c.Editor.Tables {
		if !database.ValidIdentifier(t) {
			return errs.Newf(errs.ErrKindInvalidInput, "invalid table name %q", t)
		}
	}
	if c.ConfigTable.Table != "" && !database.ValidIdentifier(c.ConfigTable.Table) {
		return errs.Newf(errs.ErrKindInvalidInput, "invalid config table name %q", c.ConfigTable.Table)
	}

	switch c.RPC.DeletePolicy {
	case "", rpc.PolicyAllow, rpc.PolicyReferences, rpc.PolicyEvenRows:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown delete policy %q", c.RPC.DeletePolicy)
	}

	if c.Export.Enabled {
		if c.Export.Endpoint == "" || c.Export.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "export requires an endpoint and a bucket")
		}
		if c.Export.Provider != "" && c.Export.Provider != filestore.ProviderMinIO {
			return errs.Newf(errs.ErrKindInvalidInput, "unknown export provider %q", c.Export.Provider)
		}
	}
	return nil
}

// DefaultRecord converts the configured defaults into a record, columns
// sorted by name.
func (e EditorConfig) DefaultRecord() database.Record {
	keys := make([]string, 0, len(e.DefaultValues))
	for k := range e.DefaultValues {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	r := database.NewRecord()
	for _, k := range keys {
		r.Set(k, e.DefaultValues[k])
	}
	return r
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
