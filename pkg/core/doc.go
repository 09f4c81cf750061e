// Package core defines the shared language of leaporm.
//
// This package contains:
//   - Data source and pool configuration values (DataSourceConfig, PoolConfig)
//   - Static dialect configuration (DialectConfig, PlaceholderStyle)
//   - The error taxonomy surfaced by every other package
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
