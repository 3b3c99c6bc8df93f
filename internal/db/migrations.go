package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// SQLiteMigrations returns the embedded local store migrations.
func SQLiteMigrations() fs.FS {
	sub, err := fs.Sub(migrationFS, "migrations/sqlite")
	if err != nil {
		panic(err)
	}
	return sub
}

// PostgresMigrations returns the embedded goose migrations for the remote
// mirror.
func PostgresMigrations() fs.FS {
	sub, err := fs.Sub(migrationFS, "migrations/postgres")
	if err != nil {
		panic(err)
	}
	return sub
}
