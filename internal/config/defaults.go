package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// Default configuration values.
const (
	DefaultOutput = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Default returns the starter configuration written by WriteDefault: one
// SQLite data source next to the config file.
func Default() *Config {
	return &Config{
		DataSources: map[string]DataSource{
			"main": {
				Dialect: core.DialectSQLite,
				Path:    "app.db",
				Pool: Pool{
					Min:              1,
					Max:              core.DefaultPoolMax,
					AcquireTimeoutMS: int(core.DefaultAcquireTimeout / time.Millisecond),
					IdleTimeoutMS:    int(core.DefaultIdleTimeout / time.Millisecond),
					HealthCheckAfter: Duration(core.DefaultHealthCheckAfter),
				},
			},
		},
	}
}

// defaultValues are the koanf defaults loaded before the file.
func defaultValues() map[string]any {
	return map[string]any{
		"verbose": false,
		"output":  DefaultOutput,
	}
}

// WriteDefault writes the starter configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	header := "# leaporm data sources. ${VAR} in host, database, username and password\n" +
		"# is replaced from the environment.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
