// Package appfs embeds the files the binaries need at runtime: SQL migrations and email templates.
package appfs

import "embed"

const (
	EmailTemplatesDir = "templates/email"
	migrationsDir     = "migrations"
)

//go:embed migrations all:templates
var FS embed.FS

// MigrationsDir returns the migrations directory for a database engine.
func MigrationsDir(engine string) string {
	return migrationsDir + "/" + engine
}
