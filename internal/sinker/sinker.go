// Package sinker implements the C6 sinker variants of spec §4.6: each
// applies a batch of model.DtItem values to one target, with a
// batch-then-row-by-row-fallback error policy shared by every SQL
// variant. Ddl items are fanned out to every shard by
// internal/pipeline.Pipeline (not just the shard a statement happens
// to route to), so each SQL sinker invalidates its own Meta cache
// directly in applyDDL rather than relying on a separate refresh
// signal.
package sinker

import (
	"context"

	"github.com/cockroachdb/rdb-replicate/internal/model"
)

// Sinker is the contract internal/pipeline.Pipeline drains into:
// ApplyBatch applies one shard's buffered items (in order), Flush
// forces out anything the sinker itself buffers internally. Every
// sinker in this package implements Flush as a no-op (MarkerSinker
// delegates); HTTPFnSinker buffers batches but leaves them for its
// consumer to fetch.
type Sinker interface {
	ApplyBatch(ctx context.Context, items []model.DtItem) error
	Flush(ctx context.Context) error
}

// groupRuns splits Dml items into runs for batching: spec §4.6 only
// batches consecutive same-kind (all Insert or all Delete) rows, so a
// kind change starts a new run, and consecutive Update rows share one
// non-batchable run that is applied serially.
// Each returned run's bool reports whether it is batchable.
func groupRuns(items []model.DtItem) []dmlRun {
	var runs []dmlRun
	for _, item := range items {
		dml, ok := item.Event.(model.Dml)
		if !ok {
			continue
		}
		batchable := dml.Row.Kind == model.EventInsert || dml.Row.Kind == model.EventDelete
		if len(runs) > 0 {
			last := &runs[len(runs)-1]
			if last.batchable == batchable && (!batchable || last.kind == dml.Row.Kind) {
				last.rows = append(last.rows, dml.Row)
				continue
			}
		}
		runs = append(runs, dmlRun{kind: dml.Row.Kind, batchable: batchable, rows: []model.RowEvent{dml.Row}})
	}
	return runs
}

type dmlRun struct {
	kind      model.EventKind
	batchable bool
	rows      []model.RowEvent
}
