// Package db holds the SQL schema of the keeper's Postgres state store.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the migration files at the root of the returned FS.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic("failed to create sub-filesystem: " + err.Error())
	}
	return sub
}
