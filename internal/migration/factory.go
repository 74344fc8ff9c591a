package migration

import (
	"fmt"

	appconfig "github.com/MbInteligen/mbras-c2s-enrichment/config"
)

// NewMigratorFromConfig creates a new migrator from application configuration.
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig creates a new migrator from the service's
// Postgres connection settings.
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*DefaultMigrator, error) {
	if dbCfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	return NewMigrator(&Config{
		DatabaseURL: dbCfg.DSN(),
		TableName:   "schema_migrations",
	})
}

// NewMigratorFromURL creates a new migrator from a raw Postgres connection URL.
func NewMigratorFromURL(dbURL string) (*DefaultMigrator, error) {
	return NewMigrator(&Config{
		DatabaseURL: dbURL,
		TableName:   "schema_migrations",
	})
}
