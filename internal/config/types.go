// Package config loads the leaporm.yaml file that describes data sources.
//
// Values are layered with koanf, lowest precedence first: built-in defaults,
// the YAML file, LEAPORM_ environment variables and command-line flags.
// Nested keys in environment variables are separated by a double underscore:
//
//	LEAPORM_DATASOURCES__MAIN__PASSWORD=secret
package config

import (
	"time"
)

// Config is the decoded configuration file.
type Config struct {
	DataSources map[string]DataSource `koanf:"datasources" yaml:"datasources"`
	Verbose     bool                  `koanf:"verbose" yaml:"verbose,omitempty"`
	Output      string                `koanf:"output" yaml:"output,omitempty"`

	// File is the path the configuration was read from; empty when none was found.
	File string `koanf:"-" yaml:"-"`
}

// DataSource is one entry under datasources.
type DataSource struct {
	Dialect  string            `koanf:"dialect" yaml:"dialect"`
	Host     string            `koanf:"host" yaml:"host,omitempty"`
	Port     int               `koanf:"port" yaml:"port,omitempty"`
	Path     string            `koanf:"path" yaml:"path,omitempty"`
	Database string            `koanf:"database" yaml:"database,omitempty"`
	Username string            `koanf:"username" yaml:"username,omitempty"`
	Password string            `koanf:"password" yaml:"password,omitempty"`
	Options  map[string]string `koanf:"options" yaml:"options,omitempty"`
	Pool     Pool              `koanf:"pool" yaml:"pool"`
}

// Pool holds the pool bounds of a data source. Zero values fall back to the
// pool defaults.
type Pool struct {
	Min              int      `koanf:"min" yaml:"min"`
	Max              int      `koanf:"max" yaml:"max"`
	AcquireTimeoutMS int      `koanf:"acquire_timeout_ms" yaml:"acquire_timeout_ms"`
	IdleTimeoutMS    int      `koanf:"idle_timeout_ms" yaml:"idle_timeout_ms"`
	HealthCheckAfter Duration `koanf:"health_check_after" yaml:"health_check_after"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
