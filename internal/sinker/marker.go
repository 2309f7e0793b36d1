package sinker

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/pkg/errors"
)

// MarkerSinker wraps another Sinker with the data-marker / loop-
// prevention counter described in spec §4.6 and grounded on
// dt-common's TransactionWorker: every applied batch that contains Dml
// items also upserts a `(marker_id, origin, src, dst)` counter row,
// identifying events this instance produced so a downstream replica
// can filter them back out.
//
// The counter upsert runs as its own statement after the wrapped
// sinker's batch succeeds rather than inside the same transaction:
// Sinker is a narrow two-method interface precisely so arbitrary
// targets (Kafka, S3, an HTTP fetch queue) can implement it, and most
// of those have no transaction to join. SQL targets that want a
// strict atomic pairing should upsert the marker row from within
// their own ApplyBatch instead of wrapping with MarkerSinker.
type MarkerSinker struct {
	Sinker Sinker
	DB     *sql.DB

	MarkerTable string // schema-qualified, e.g. "rdb_replicate.data_markers"
	// InstanceID identifies this replication instance; set once at
	// construction (typically uuid.NewString()), not per batch.
	InstanceID string
	Origin     string
	Src        string
	Dst        string
}

func (m *MarkerSinker) Flush(ctx context.Context) error {
	return m.Sinker.Flush(ctx)
}

func (m *MarkerSinker) ApplyBatch(ctx context.Context, items []model.DtItem) error {
	n := 0
	for _, item := range items {
		if _, ok := item.Event.(model.Dml); ok {
			n++
		}
	}
	if n == 0 {
		return m.Sinker.ApplyBatch(ctx, items)
	}

	if err := m.Sinker.ApplyBatch(ctx, items); err != nil {
		return err
	}

	query := "INSERT INTO " + m.MarkerTable + " (marker_id, origin, src, dst, row_count) VALUES (?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE row_count = row_count + VALUES(row_count)"
	if _, err := m.DB.ExecContext(ctx, query, m.InstanceID, m.Origin, m.Src, m.Dst, n); err != nil {
		return errors.Wrap(err, "upserting data marker row")
	}
	return nil
}
