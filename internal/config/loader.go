package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/dialect"
	_ "github.com/leapstack-labs/leaporm/pkg/dialects/mysql"    // register for validation and default ports
	_ "github.com/leapstack-labs/leaporm/pkg/dialects/postgres" // register for validation and default ports
	_ "github.com/leapstack-labs/leaporm/pkg/dialects/sqlite"   // register for validation and default ports
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "leaporm.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leaporm.yml"

// EnvPrefix prefixes environment variables that override file values.
const EnvPrefix = "LEAPORM_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"verbose": "verbose",
	"output":  "output",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// FindFile returns the config file to use: explicit when given, otherwise
// the first leaporm.yaml or leaporm.yml found from startDir upward. It
// returns "" when there is none.
func FindFile(explicit, startDir string) string {
	if explicit != "" {
		return explicit
	}
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load reads configuration from the file at path (searched for from the
// working directory when empty), environment variables and flags, then
// validates it. flags may be nil.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = FindFile("", cwd)
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. Environment variables
	// Transform: LEAPORM_DATASOURCES__MAIN__HOST -> datasources.main.host
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = path

	baseDir := "."
	if path != "" {
		baseDir = filepath.Dir(path)
	}
	for name, ds := range cfg.DataSources {
		ds.expandEnvVars()
		ds.Path = resolvePathRelativeTo(ds.Path, baseDir)
		cfg.DataSources[name] = ds
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	for _, name := range c.Names() {
		if err := c.DataSources[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("datasources.%s: %w", name, err))
		}
	}
	switch c.Output {
	case "", DefaultOutput, "text", "markdown", "json":
	default:
		errs = append(errs, fmt.Errorf("output: unknown format %q (auto|text|markdown|json)", c.Output))
	}
	return errors.Join(errs...)
}

func (ds DataSource) validate() error {
	var errs []error
	d, err := dialect.Lookup(ds.Dialect)
	if err != nil {
		errs = append(errs, err)
	}
	if d != nil {
		switch d.Name {
		case core.DialectSQLite:
			if ds.Path == "" {
				errs = append(errs, errors.New("path is required for sqlite"))
			}
		default:
			if ds.Host == "" {
				errs = append(errs, fmt.Errorf("host is required for %s", d.Name))
			}
			if ds.Database == "" {
				errs = append(errs, fmt.Errorf("database is required for %s", d.Name))
			}
		}
	}
	if ds.Port < 0 || ds.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", ds.Port))
	}
	if ds.Pool.AcquireTimeoutMS < 0 || ds.Pool.IdleTimeoutMS < 0 || ds.Pool.HealthCheckAfter < 0 {
		errs = append(errs, errors.New("pool timeouts must not be negative"))
	} else if err := ds.poolConfig().WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Names returns the configured data source names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.DataSources))
	for name := range c.DataSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataSource converts the named entry to the form orm.Open takes. An empty
// port is filled with the dialect's default.
func (c *Config) DataSource(name string) (core.DataSourceConfig, error) {
	ds, ok := c.DataSources[name]
	if !ok {
		return core.DataSourceConfig{}, fmt.Errorf("unknown datasource %q (available: %v)", name, c.Names())
	}
	d, err := dialect.Lookup(ds.Dialect)
	if err != nil {
		return core.DataSourceConfig{}, fmt.Errorf("datasource %s: %w", name, err)
	}

	port := ds.Port
	if port == 0 && d.Name != core.DialectSQLite {
		port = d.DefaultPort
	}
	return core.DataSourceConfig{
		Name:     name,
		Dialect:  d.Name,
		Host:     ds.Host,
		Port:     port,
		Database: ds.Database,
		Username: ds.Username,
		Password: ds.Password,
		Path:     ds.Path,
		Options:  ds.Options,
		Pool:     ds.poolConfig(),
	}, nil
}

// DataSourceConfigs converts every entry, keyed by name.
func (c *Config) DataSourceConfigs() (map[string]core.DataSourceConfig, error) {
	out := make(map[string]core.DataSourceConfig, len(c.DataSources))
	for _, name := range c.Names() {
		ds, err := c.DataSource(name)
		if err != nil {
			return nil, err
		}
		out[name] = ds
	}
	return out, nil
}

func (ds DataSource) poolConfig() core.PoolConfig {
	return core.PoolConfig{
		Min:              ds.Pool.Min,
		Max:              ds.Pool.Max,
		AcquireTimeout:   msToDuration(ds.Pool.AcquireTimeoutMS),
		IdleTimeout:      msToDuration(ds.Pool.IdleTimeoutMS),
		HealthCheckAfter: ds.Pool.HealthCheckAfter.Std(),
	}
}

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// expandEnvVars expands environment variables in sensitive fields.
func (ds *DataSource) expandEnvVars() {
	ds.Host = expandEnvVars(ds.Host)
	ds.Database = expandEnvVars(ds.Database)
	ds.Username = expandEnvVars(ds.Username)
	ds.Password = expandEnvVars(ds.Password)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Empty, absolute and in-memory paths are returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || strings.HasPrefix(path, "file:") {
		return path
	}
	return filepath.Join(baseDir, path)
}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// WithLogger returns ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the loaded config from the command context, or an
// empty configuration when none was loaded.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{Output: DefaultOutput}
}
