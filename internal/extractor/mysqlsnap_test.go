package extractor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTableMeta() *model.TableMeta {
	return &model.TableMeta{
		Schema:   "app",
		Table:    "orders",
		Cols:     []string{"id", "total"},
		ColTypes: map[string]colval.Type{"id": {Kind: colval.TypeBigInt}, "total": {Kind: colval.TypeChar}},
		OrderCol: "id",
	}
}

type staticMeta struct{ tm *model.TableMeta }

func (m staticMeta) Get(ctx context.Context, schema, tb string) (*model.TableMeta, error) { return m.tm, nil }
func (m staticMeta) Invalidate(schema, tb string)                                         {}
func (m staticMeta) InvalidateAll()                                                       {}

func TestMySQLSnapshotRunOrderedPaginatesAndFinishes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	firstBatch := sqlmock.NewRows([]string{"id", "total"}).
		AddRow(int64(1), "10").
		AddRow(int64(2), "20")
	mock.ExpectQuery("SELECT .* FROM `app`\\.`orders` ORDER BY `id` ASC LIMIT \\?").
		WithArgs(2).WillReturnRows(firstBatch)

	secondBatch := sqlmock.NewRows([]string{"id", "total"})
	mock.ExpectQuery("SELECT .* FROM `app`\\.`orders` WHERE `id` > \\? ORDER BY `id` ASC LIMIT \\?").
		WithArgs("2", 2).WillReturnRows(secondBatch)

	f, err := filter.New(filter.Config{DoDBs: "*"})
	require.NoError(t, err)
	q := pipeline.NewQueue(8)
	s := &MySQLSnapshot{DB: db, Meta: staticMeta{ordersTableMeta()}, Filter: f, Queue: q, Schema: "app", Table: "orders", BatchSize: 2}
	sctx := stopper.WithContext(context.Background())

	require.NoError(t, s.Run(sctx))

	item1, ok, err := q.Pop(sctx)
	require.NoError(t, err)
	require.True(t, ok)
	dml := item1.Event.(model.Dml)
	assert.Equal(t, colval.NewInt64(1), dml.Row.After["id"])

	item2, ok, err := q.Pop(sctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, colval.NewInt64(2), item2.Event.(model.Dml).Row.After["id"])

	finish, ok, err := q.Pop(sctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.PositionRdbSnapshotFinished, finish.Position.Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSnapshotRunOrderedSamplesPositions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "total"}).
		AddRow(int64(1), "10").
		AddRow(int64(2), "20").
		AddRow(int64(3), "30")
	mock.ExpectQuery("SELECT .* FROM `app`\\.`orders` ORDER BY `id` ASC LIMIT \\?").
		WithArgs(10).WillReturnRows(rows)

	f, err := filter.New(filter.Config{DoDBs: "*"})
	require.NoError(t, err)
	q := pipeline.NewQueue(8)
	s := &MySQLSnapshot{DB: db, Meta: staticMeta{ordersTableMeta()}, Filter: f, Queue: q, Schema: "app", Table: "orders", BatchSize: 10, SampleInterval: 2}
	sctx := stopper.WithContext(context.Background())

	require.NoError(t, s.Run(sctx))

	item1, _, _ := q.Pop(sctx)
	assert.Equal(t, model.NoPosition, item1.Position)
	item2, _, _ := q.Pop(sctx)
	assert.NotEqual(t, model.NoPosition, item2.Position)
	item3, _, _ := q.Pop(sctx)
	assert.Equal(t, model.NoPosition, item3.Position)
}

func TestMySQLSnapshotFetchBatchBoundsUpperInSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The partition window's upper bound must be part of the query
	// text itself, not just a post-fetch check, so a gappy orderCol
	// can't let a single LIMIT-bounded page read past its partition.
	rows := sqlmock.NewRows([]string{"id", "total"}).AddRow(int64(3), "30")
	mock.ExpectQuery("SELECT .* FROM `app`\\.`orders` WHERE `id` > \\? AND `id` < \\? ORDER BY `id` ASC LIMIT \\?").
		WithArgs("0", "5", 100).WillReturnRows(rows)

	f, err := filter.New(filter.Config{DoDBs: "*"})
	require.NoError(t, err)
	s := &MySQLSnapshot{DB: db, Queue: pipeline.NewQueue(8), Filter: f, Schema: "app", Table: "orders", UpperBound: "5"}
	sctx := stopper.WithContext(context.Background())

	_, last, n, err := s.fetchBatch(sctx, ordersTableMeta(), "0", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "3", last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLSnapshotRunUnorderedScansWholeTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := &model.TableMeta{
		Schema: "app", Table: "logs", Cols: []string{"id"},
		ColTypes: map[string]colval.Type{"id": {Kind: colval.TypeBigInt}},
	}
	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2))
	mock.ExpectQuery("SELECT .* FROM `app`\\.`logs`").WillReturnRows(rows)

	f, err := filter.New(filter.Config{DoDBs: "*"})
	require.NoError(t, err)
	q := pipeline.NewQueue(8)
	s := &MySQLSnapshot{DB: db, Meta: staticMeta{tm}, Filter: f, Queue: q, Schema: "app", Table: "logs"}
	sctx := stopper.WithContext(context.Background())

	require.NoError(t, s.Run(sctx))

	n := 0
	for {
		item, ok, err := q.Pop(sctx)
		require.NoError(t, err)
		require.True(t, ok)
		if item.Position.Type == model.PositionRdbSnapshotFinished {
			break
		}
		n++
	}
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
