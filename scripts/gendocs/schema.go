package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaporm/internal/config"
)

// generateSchemaDocs generates the leaporm.yaml reference.
func generateSchemaDocs(outDir string) error {
	log.Printf("Generating schema docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")

	return nil
}

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Category    string // "datasource", "network", "sqlite", "pool"
}

// fieldDocs describes each koanf key of config.DataSource and config.Pool.
var fieldDocs = map[string]ConfigField{
	"dialect":            {Category: "datasource", Description: "mysql, postgresql or sqlite (aliases: postgres, pg, sqlite3, mariadb)"},
	"options":            {Category: "datasource", Description: "Driver-specific options, e.g. sslmode, driver: pq, charset"},
	"host":               {Category: "network", Description: "Database host; ${VAR} is expanded"},
	"port":               {Category: "network", Default: "3306 / 5432", Description: "Database port; the dialect default when empty"},
	"database":           {Category: "network", Description: "Database name; ${VAR} is expanded"},
	"username":           {Category: "network", Description: "Database user; ${VAR} is expanded"},
	"password":           {Category: "network", Description: "Database password; ${VAR} is expanded"},
	"path":               {Category: "sqlite", Description: "Database file, relative to leaporm.yaml, or :memory:"},
	"min":                {Category: "pool", Default: "0", Description: "Connections opened eagerly and kept through idle expiry"},
	"max":                {Category: "pool", Default: "10", Description: "Maximum open connections"},
	"acquire_timeout_ms": {Category: "pool", Default: "5000", Description: "How long a lease waits for a free connection"},
	"idle_timeout_ms":    {Category: "pool", Default: "300000", Description: "Idle connections above min are closed after this"},
	"health_check_after": {Category: "pool", Default: "30s", Description: "Connections idle longer than this are pinged before reuse"},
}

// getConfigSchema returns the documented fields in struct order. Field names
// and types come from the koanf tags of the config types.
func getConfigSchema() []ConfigField {
	var fields []ConfigField
	collect := func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := f.Tag.Get("koanf")
			doc, ok := fieldDocs[key]
			if !ok {
				continue
			}
			doc.Name = key
			doc.Type = typeName(f.Type)
			fields = append(fields, doc)
		}
	}
	collect(reflect.TypeOf(config.DataSource{}))
	collect(reflect.TypeOf(config.Pool{}))
	return fields
}

func typeName(t reflect.Type) string {
	if t == reflect.TypeOf(config.Duration(0)) {
		return "duration"
	}
	return t.String()
}

// generateConfigurationDoc generates the configuration reference page.
func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "LeapORM configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("LeapORM reads " + InlineCode(config.ConfigFileName) + " from the working directory or the nearest parent. " +
		"Each entry under " + InlineCode("datasources") + " becomes one connection pool.")

	w.BulletList([]string{
		InlineCode("${VAR}") + " in host, database, username and password is replaced from the environment; unset variables are left as written.",
		"Relative SQLite paths resolve against the directory holding " + InlineCode(config.ConfigFileName) + ".",
		"Validation reports every invalid data source at once.",
	})

	fields := getConfigSchema()
	sections := []struct {
		category, title, intro string
	}{
		{"datasource", "Data Source", "Keys shared by every dialect:"},
		{"network", "MySQL and PostgreSQL", "Connection settings for network databases:"},
		{"sqlite", "SQLite", "SQLite needs only a file:"},
		{"pool", "Pool", "Nested under " + InlineCode("pool") + ". Zero values fall back to the defaults:"},
	}
	for _, s := range sections {
		w.Header(2, s.title)
		w.Paragraph(s.intro)
		var rows [][]string
		for _, f := range fields {
			if f.Category != s.category {
				continue
			}
			defVal := f.Default
			if defVal == "" {
				defVal = "-"
			}
			rows = append(rows, []string{InlineCode(f.Name), f.Type, defVal, f.Description})
		}
		w.Table([]string{"Field", "Type", "Default", "Description"}, rows)
	}

	w.Header(2, "Starter File")
	w.Paragraph(InlineCode("leaporm init") + " writes:")
	starter, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	w.CodeBlock("yaml", string(starter))

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", strings.TrimSpace(`
datasources:
  main:
    dialect: postgresql
    host: ${DB_HOST}
    database: app
    username: app
    password: ${APP_DB_PASSWORD}
    options:
      sslmode: require
    pool:
      min: 2
      max: 20
      acquire_timeout_ms: 2000
      health_check_after: 1m

  reporting:
    dialect: mysql
    host: reports.internal
    database: reports
    username: reader
    password: ${REPORTS_PASSWORD}

  cache:
    dialect: sqlite
    path: data/cache.db`))

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
