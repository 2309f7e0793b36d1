package meta

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLManagerGetLoadsAndCachesTableMeta(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	colRows := sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "CHARACTER_MAXIMUM_LENGTH",
		"NUMERIC_PRECISION", "NUMERIC_SCALE", "CHARACTER_SET_NAME", "COLUMN_TYPE"}).
		AddRow("id", "bigint", "bigint(20) unsigned", nil, nil, nil, nil, "bigint(20) unsigned").
		AddRow("name", "varchar", "varchar(64)", 64, nil, nil, "utf8mb4", "varchar(64)")
	mock.ExpectQuery("SELECT COLUMN_NAME").WithArgs("app", "users").WillReturnRows(colRows)

	idxRows := sqlmock.NewRows([]string{"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name"}).
		AddRow("users", "0", "PRIMARY", "1", "id")
	mock.ExpectQuery("SHOW INDEXES FROM `app`\\.`users`").WillReturnRows(idxRows)

	m := NewMySQLManager(db, false)
	tm, err := m.Get(context.Background(), "app", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, tm.Cols)
	assert.True(t, tm.ColTypes["id"].Unsigned)
	assert.Equal(t, []string{"id"}, tm.IDCols)
	assert.Equal(t, "id", tm.OrderCol)

	// Second Get must hit the cache, not issue more queries.
	tm2, err := m.Get(context.Background(), "APP", "USERS")
	require.NoError(t, err)
	assert.Same(t, tm, tm2)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLManagerGetLoadsForeignKeysWhenEnabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	colRows := sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "CHARACTER_MAXIMUM_LENGTH",
		"NUMERIC_PRECISION", "NUMERIC_SCALE", "CHARACTER_SET_NAME", "COLUMN_TYPE"}).
		AddRow("id", "bigint", "bigint", nil, nil, nil, nil, "bigint").
		AddRow("order_id", "bigint", "bigint", nil, nil, nil, nil, "bigint")
	mock.ExpectQuery("SELECT COLUMN_NAME").WithArgs("app", "items").WillReturnRows(colRows)

	idxRows := sqlmock.NewRows([]string{"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name"}).
		AddRow("items", "0", "PRIMARY", "1", "id")
	mock.ExpectQuery("SHOW INDEXES FROM `app`\\.`items`").WillReturnRows(idxRows)

	fkRows := sqlmock.NewRows([]string{"CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_SCHEMA", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
		AddRow("fk_order", "order_id", "app", "orders", "id")
	mock.ExpectQuery("SELECT CONSTRAINT_NAME").WithArgs("app", "items").WillReturnRows(fkRows)

	m := NewMySQLManager(db, true)
	tm, err := m.Get(context.Background(), "app", "items")
	require.NoError(t, err)
	require.Len(t, tm.ForeignKeys, 1)
	assert.Equal(t, "orders", tm.ForeignKeys[0].RefTable)
	assert.Equal(t, []string{"order_id"}, tm.ForeignKeys[0].Cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLManagerGetErrorsOnEmptyTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COLUMN_NAME").WithArgs("app", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "CHARACTER_MAXIMUM_LENGTH",
			"NUMERIC_PRECISION", "NUMERIC_SCALE", "CHARACTER_SET_NAME", "COLUMN_TYPE"}))

	m := NewMySQLManager(db, false)
	_, err = m.Get(context.Background(), "app", "ghost")
	assert.Error(t, err)
}

func TestMySQLManagerInvalidateDropsCacheEntry(t *testing.T) {
	m := NewMySQLManager(nil, false)
	m.cache["app.users"] = nil
	m.Invalidate("APP", "USERS")
	assert.NotContains(t, m.cache, "app.users")
}

func TestMySQLManagerInvalidateAllClearsCache(t *testing.T) {
	m := NewMySQLManager(nil, false)
	m.cache["app.users"] = nil
	m.cache["app.orders"] = nil
	m.InvalidateAll()
	assert.Empty(t, m.cache)
}
