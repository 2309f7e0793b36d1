// Package extractor implements the four source readers spec §4.4
// describes: MySQL and PostgreSQL snapshot scanners, and MySQL and
// PostgreSQL CDC stream readers. All four share the same output
// contract and push into a common internal/pipeline.Queue.
package extractor

import (
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
)

// Extractor is the contract every variant satisfies: push DtItems into
// the bounded queue, block cooperatively when it is full, close on a
// fatal driver error, and emit a final Commit or RdbSnapshotFinished
// position on clean completion (spec §4.4).
type Extractor interface {
	Run(sctx *stopper.Context) error
}

// snapshotRow packages one snapshot row into a DtItem carrying a
// Dml(Insert) event plus an RdbSnapshot position.
func snapshotRow(dbType, schema, table, orderCol, value string, row model.Row) model.DtItem {
	pos := model.NewRdbSnapshot(dbType, schema, table, orderCol, value)
	ev := model.RowEvent{
		Schema:   schema,
		Table:    table,
		Kind:     model.EventInsert,
		After:    row,
		Position: pos,
	}
	return model.DtItem{Event: model.Dml{Row: ev}, Position: pos}
}
