package driver

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Driver)
)

// Register adds a driver factory to the registry, keyed by dialect.
// Called by driver implementations in their init() functions.
func Register(dialectName string, factory func(*slog.Logger) Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[dialectName] = factory
}

// Get retrieves a driver factory by dialect name. Aliases resolve to their
// canonical dialect.
func Get(dialectName string) (func(*slog.Logger) Driver, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[core.CanonicalDialect(dialectName)]
	return f, ok
}

// NewDriver creates a new driver instance for the data source's dialect.
// The logger parameter is passed to the driver constructor (nil uses discard logger).
func NewDriver(cfg core.DataSourceConfig, logger *slog.Logger) (Driver, error) {
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("dialect not specified for data source %q", cfg.Name)
	}

	factory, ok := Get(cfg.Dialect)
	if !ok {
		return nil, &UnknownDriverError{
			Dialect:   cfg.Dialect,
			Available: ListDrivers(),
		}
	}
	return factory(logger), nil
}

// ListDrivers returns all registered dialect names (sorted).
func ListDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a driver is registered for the dialect.
func IsRegistered(dialectName string) bool {
	_, ok := Get(dialectName)
	return ok
}

// UnknownDriverError is returned when no driver is registered for a dialect.
type UnknownDriverError struct {
	Dialect   string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown dialect %q\nAvailable drivers: %v\nHint: Check datasources.<name>.dialect in leaporm.yaml", e.Dialect, e.Available)
}
