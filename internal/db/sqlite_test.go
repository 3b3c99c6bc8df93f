package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrationsEmbedded(t *testing.T) {
	database, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "local.db"))
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, RunMigrations(database, SQLiteMigrations()))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(database, SQLiteMigrations()))

	for _, table := range []string{"users", "kv_store", "schema_migrations"} {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`,
			table,
		).Scan(&name)
		require.NoError(t, err, table)
	}

	var applied int
	require.NoError(t, database.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestRunMigrationsOrderAndFailure(t *testing.T) {
	database, err := OpenSQLite(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	defer database.Close()

	fsys := fstest.MapFS{
		"002_insert.sql": {Data: []byte(`INSERT INTO things (id) VALUES (1);`)},
		"001_create.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
		"README.md":      {Data: []byte(`ignored`)},
	}
	require.NoError(t, RunMigrations(database, fsys))

	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(1) FROM things`).Scan(&count))
	assert.Equal(t, 1, count)

	broken := fstest.MapFS{
		"003_broken.sql": {Data: []byte(`CREATE TABLE;`)},
	}
	err = RunMigrations(database, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_broken.sql")
}

func TestPostgresMigrationsEmbedded(t *testing.T) {
	for _, name := range []string{"00001_init.sql", "00002_activity_project.sql"} {
		data, err := PostgresMigrations().Open(name)
		require.NoError(t, err, name)
		require.NoError(t, data.Close())
	}
}
