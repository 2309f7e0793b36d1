package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	touches, err := Parse("CREATE TABLE `app`.`users` (id INT)", "app")
	require.NoError(t, err)
	require.Len(t, touches, 1)
	assert.Equal(t, Touch{Schema: "app", Table: "users"}, touches[0])
}

func TestParseCreateTableBareNameUsesDefaultSchema(t *testing.T) {
	touches, err := Parse("CREATE TABLE orders (id INT)", "app")
	require.NoError(t, err)
	require.Len(t, touches, 1)
	assert.Equal(t, Touch{Schema: "app", Table: "orders"}, touches[0])
}

func TestParseAlterTable(t *testing.T) {
	touches, err := Parse("ALTER TABLE app.users ADD COLUMN x INT", "other")
	require.NoError(t, err)
	require.Len(t, touches, 1)
	assert.Equal(t, Touch{Schema: "app", Table: "users"}, touches[0])
}

func TestParseTruncateTable(t *testing.T) {
	touches, err := Parse("TRUNCATE TABLE app.users", "app")
	require.NoError(t, err)
	require.Len(t, touches, 1)
	assert.Equal(t, "users", touches[0].Table)
}

func TestParseDropMultipleTables(t *testing.T) {
	touches, err := Parse("DROP TABLE app.users, app.orders", "app")
	require.NoError(t, err)
	require.Len(t, touches, 2)
	assert.Equal(t, Touch{Schema: "app", Table: "users"}, touches[0])
	assert.Equal(t, Touch{Schema: "app", Table: "orders"}, touches[1])
}

func TestParseRenameTable(t *testing.T) {
	touches, err := Parse("RENAME TABLE app.users TO app.people", "app")
	require.NoError(t, err)
	require.Len(t, touches, 2)
	assert.Equal(t, Touch{Schema: "app", Table: "users"}, touches[0])
	assert.Equal(t, Touch{Schema: "app", Table: "people"}, touches[1])
}

func TestParseRenameTableMultiplePairs(t *testing.T) {
	touches, err := Parse("RENAME TABLE a TO b, c TO d", "app")
	require.NoError(t, err)
	require.Len(t, touches, 4)
}

func TestParseUnrecognizedStatement(t *testing.T) {
	_, err := Parse("INSERT INTO app.users VALUES (1)", "app")
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestParseLowercasesIdentifiers(t *testing.T) {
	touches, err := Parse("CREATE TABLE APP.USERS (id INT)", "app")
	require.NoError(t, err)
	assert.Equal(t, "app", touches[0].Schema)
	assert.Equal(t, "users", touches[0].Table)
}
