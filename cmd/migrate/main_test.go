package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (id INT);

-- second
INSERT INTO a VALUES ('x;y');
CREATE INDEX idx ON a (id)`

	stmts := splitStatements(input)

	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (id INT)", stmts[0])
	assert.Equal(t, "INSERT INTO a VALUES ('x;y')", stmts[1])
	assert.Equal(t, "CREATE INDEX idx ON a (id)", stmts[2])
}

func TestSplitStatements_Empty(t *testing.T) {
	assert.Empty(t, splitStatements("-- nothing here\n\n"))
}

func TestMigrationFiles(t *testing.T) {
	for _, dbType := range []string{"postgres", "mysql"} {
		up, err := migrationFiles(dbType, "up")
		require.NoError(t, err)
		assert.Equal(t, []string{"migrations/" + dbType + "/001_tracker_schema.up.sql"}, up)

		down, err := migrationFiles(dbType, "down")
		require.NoError(t, err)
		assert.Len(t, down, 1)
	}

	_, err := migrationFiles("sqlite", "up")
	assert.Error(t, err)
}

func TestEmbeddedSchemasParse(t *testing.T) {
	for _, name := range []string{
		"migrations/postgres/001_tracker_schema.up.sql",
		"migrations/mysql/001_tracker_schema.up.sql",
	} {
		content, err := migrations.ReadFile(name)
		require.NoError(t, err)

		stmts := splitStatements(string(content))
		assert.NotEmpty(t, stmts, name)
		for _, stmt := range stmts {
			assert.NotContains(t, stmt, "--", name)
		}
	}
}

func TestDriverName(t *testing.T) {
	name, err := driverName("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)

	_, err = driverName("oracle")
	assert.Error(t, err)
}
