package querybuilder

import (
	"strings"
	"testing"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/ident"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersMeta() *model.TableMeta {
	return &model.TableMeta{
		Schema: "app",
		Table:  "users",
		Cols:   []string{"id", "name"},
		ColTypes: map[string]colval.Type{
			"id":   {Kind: colval.TypeBigInt},
			"name": {Kind: colval.TypeChar},
		},
		Keys:   map[string]model.Key{"PRIMARY": {Name: "PRIMARY", Cols: []string{"id"}}},
		IDCols: []string{"id"},
	}
}

func TestInsertMySQL(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	ev := model.RowEvent{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("alice")}}

	bound, err := b.Insert(ev)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `app`.`users`(`id`,`name`) VALUES(?,?)", bound.SQL)
	assert.Equal(t, []string{"id", "name"}, bound.Cols)
	require.Len(t, bound.Vals, 2)
}

func TestInsertPostgres(t *testing.T) {
	b := New(ident.PostgreSQL, usersMeta())
	ev := model.RowEvent{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("alice")}}

	bound, err := b.Insert(ev)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "app"."users"("id","name") VALUES($1::int8,$2::text)`, bound.SQL)
}

func TestInsertMySQLReplaceUsesReplaceIntoVerb(t *testing.T) {
	b := New(ident.MySQL, usersMeta()).WithReplace(true)
	ev := model.RowEvent{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("alice")}}

	bound, err := b.Insert(ev)
	require.NoError(t, err)
	assert.Equal(t, "REPLACE INTO `app`.`users`(`id`,`name`) VALUES(?,?)", bound.SQL)
}

func TestInsertPostgresReplaceAppendsOnConflictDoUpdate(t *testing.T) {
	b := New(ident.PostgreSQL, usersMeta()).WithReplace(true)
	ev := model.RowEvent{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("alice")}}

	bound, err := b.Insert(ev)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "app"."users"("id","name") VALUES($1::int8,$2::text) ON CONFLICT ("id") DO UPDATE SET "name"=EXCLUDED."name"`, bound.SQL)
}

func TestInsertPostgresReplaceWithNoIDColsFallsBackToPlainInsert(t *testing.T) {
	meta := usersMeta()
	meta.IDCols = nil
	b := New(ident.PostgreSQL, meta).WithReplace(true)
	ev := model.RowEvent{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("alice")}}

	bound, err := b.Insert(ev)
	require.NoError(t, err)
	assert.NotContains(t, bound.SQL, "ON CONFLICT")
}

func TestBatchInsertMySQLReplaceUsesReplaceIntoVerb(t *testing.T) {
	b := New(ident.MySQL, usersMeta()).WithReplace(true)
	rows := []model.RowEvent{
		{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("a")}},
	}
	bound, err := b.BatchInsert(rows)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bound.SQL, "REPLACE INTO"))
}

func TestBatchInsertPlaceholdersAreConsecutive(t *testing.T) {
	b := New(ident.PostgreSQL, usersMeta())
	rows := []model.RowEvent{
		{After: model.Row{"id": colval.NewInt64(1), "name": colval.NewString("a")}},
		{After: model.Row{"id": colval.NewInt64(2), "name": colval.NewString("b")}},
	}

	bound, err := b.BatchInsert(rows)
	require.NoError(t, err)
	assert.Contains(t, bound.SQL, "($1::int8,$2::text),($3::int8,$4::text)")
	assert.Len(t, bound.Vals, 4)
}

func TestBatchInsertEmptyErrors(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	_, err := b.BatchInsert(nil)
	assert.Error(t, err)
}

func TestUpdateSetsOnlyChangedCols(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	ev := model.RowEvent{
		Before: model.Row{"id": colval.NewInt64(1)},
		After:  model.Row{"name": colval.NewString("bob")},
	}
	bound, err := b.Update(ev)
	require.NoError(t, err)
	assert.Contains(t, bound.SQL, "SET `name`=?")
	assert.Contains(t, bound.SQL, "WHERE `id` = ?")
	assert.NotContains(t, bound.SQL, "LIMIT 1", "table has a key, so no LIMIT fallback")
}

func TestUpdateNoCols(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	_, err := b.Update(model.RowEvent{Before: model.Row{"id": colval.NewInt64(1)}})
	assert.Error(t, err)
}

func TestUpdateKeylessTableAppendsLimit(t *testing.T) {
	meta := usersMeta()
	meta.Keys = nil
	b := New(ident.MySQL, meta)
	ev := model.RowEvent{Before: model.Row{"id": colval.NewInt64(1)}, After: model.Row{"name": colval.NewString("x")}}

	bound, err := b.Update(ev)
	require.NoError(t, err)
	assert.Contains(t, bound.SQL, "LIMIT 1")
}

func TestDeleteWhereClause(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	ev := model.RowEvent{Before: model.Row{"id": colval.NewInt64(5)}}

	bound, err := b.Delete(ev)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `app`.`users` WHERE `id` = ?", bound.SQL)
	require.Len(t, bound.Vals, 1)
}

func TestDeleteNullKeyRendersIsNull(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	ev := model.RowEvent{Before: model.Row{"id": colval.None}}

	bound, err := b.Delete(ev)
	require.NoError(t, err)
	assert.Contains(t, bound.SQL, "`id` IS NULL")
	assert.Empty(t, bound.Vals)
}

func TestBatchDeleteRendersTuples(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	rows := []model.RowEvent{
		{Before: model.Row{"id": colval.NewInt64(1)}},
		{Before: model.Row{"id": colval.NewInt64(2)}},
	}
	bound, err := b.BatchDelete(rows)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `app`.`users` WHERE (`id`) IN ((?),(?))", bound.SQL)
	assert.Len(t, bound.Vals, 2)
}

func TestBatchDeleteNullKeyErrors(t *testing.T) {
	b := New(ident.MySQL, usersMeta())
	rows := []model.RowEvent{
		{Before: model.Row{"id": colval.NewInt64(1)}},
		{Before: model.Row{"id": colval.None}},
	}
	_, err := b.BatchDelete(rows)
	var nullKeyErr *NullKeyInBatchDeleteError
	assert.ErrorAs(t, err, &nullKeyErr)
}

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 1, BatchSize(0, 10))
	assert.Equal(t, 5, BatchSize(5, 10))
	assert.Equal(t, 3, BatchSize(5, 3))
}
