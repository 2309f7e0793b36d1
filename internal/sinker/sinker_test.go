package sinker

import (
	"testing"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowEvent(kind model.EventKind, id int64) model.RowEvent {
	row := model.Row{"id": colval.NewInt64(id)}
	switch kind {
	case model.EventInsert:
		return model.RowEvent{Kind: kind, After: row}
	case model.EventDelete:
		return model.RowEvent{Kind: kind, Before: row}
	default:
		return model.RowEvent{Kind: kind, Before: row, After: row}
	}
}

func TestGroupRunsCoalescesConsecutiveSameKindBatchable(t *testing.T) {
	items := []model.DtItem{
		{Event: model.Dml{Row: rowEvent(model.EventInsert, 1)}},
		{Event: model.Dml{Row: rowEvent(model.EventInsert, 2)}},
		{Event: model.Dml{Row: rowEvent(model.EventInsert, 3)}},
	}
	runs := groupRuns(items)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].batchable)
	assert.Equal(t, model.EventInsert, runs[0].kind)
	assert.Len(t, runs[0].rows, 3)
}

func TestGroupRunsSplitsOnKindTransition(t *testing.T) {
	items := []model.DtItem{
		{Event: model.Dml{Row: rowEvent(model.EventInsert, 1)}},
		{Event: model.Dml{Row: rowEvent(model.EventDelete, 2)}},
	}
	runs := groupRuns(items)
	require.Len(t, runs, 2)
	assert.Equal(t, model.EventInsert, runs[0].kind)
	assert.Equal(t, model.EventDelete, runs[1].kind)
}

func TestGroupRunsUpdateIsNeverBatched(t *testing.T) {
	items := []model.DtItem{
		{Event: model.Dml{Row: rowEvent(model.EventUpdate, 1)}},
		{Event: model.Dml{Row: rowEvent(model.EventUpdate, 2)}},
	}
	runs := groupRuns(items)
	require.Len(t, runs, 1, "consecutive updates share one serial run")
	for _, r := range runs {
		assert.False(t, r.batchable)
	}
}

func TestGroupRunsIgnoresNonDmlItems(t *testing.T) {
	items := []model.DtItem{
		{Event: model.Ddl{SQL: "ALTER TABLE x"}},
		{Event: model.Dml{Row: rowEvent(model.EventInsert, 1)}},
	}
	runs := groupRuns(items)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].rows, 1)
}
