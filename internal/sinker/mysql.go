package sinker

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/rdb-replicate/internal/ident"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/metrics"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/querybuilder"
	"github.com/cockroachdb/rdb-replicate/internal/util/msort"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MySQLSinker applies DML/DDL to a MySQL target, following spec
// §4.6's batch-then-row-by-row-fallback contract.
type MySQLSinker struct {
	DB      *sql.DB
	Meta    meta.Manager
	Replace bool
}

func (s *MySQLSinker) Flush(ctx context.Context) error { return nil }

// ApplyBatch groups items by table and run, batching consecutive
// Insert/Delete runs and always applying Update serially.
func (s *MySQLSinker) ApplyBatch(ctx context.Context, items []model.DtItem) error {
	byTable := make(map[string][]model.DtItem)
	var order []string
	for _, item := range items {
		switch ev := item.Event.(type) {
		case model.Ddl:
			if err := s.applyDDL(ctx, ev); err != nil {
				return err
			}
		case model.Dml:
			key := ev.Row.Schema + "." + ev.Row.Table
			if _, ok := byTable[key]; !ok {
				order = append(order, key)
			}
			byTable[key] = append(byTable[key], item)
		}
	}

	for _, key := range order {
		if err := s.applyTable(ctx, byTable[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLSinker) applyTable(ctx context.Context, items []model.DtItem) error {
	dmls := make([]model.DtItem, 0, len(items))
	for _, it := range items {
		if _, ok := it.Event.(model.Dml); ok {
			dmls = append(dmls, it)
		}
	}
	if len(dmls) == 0 {
		return nil
	}
	first := dmls[0].Event.(model.Dml).Row
	tm, err := s.Meta.Get(ctx, first.Schema, first.Table)
	if err != nil {
		return errors.Wrapf(err, "loading metadata for %s.%s", first.Schema, first.Table)
	}
	b := querybuilder.New(ident.MySQL, tm).WithReplace(s.Replace)

	for _, run := range groupRuns(dmls) {
		if run.batchable && len(run.rows) > 1 {
			if err := s.applyBatchedRun(ctx, b, tm, run); err != nil {
				metrics.SinkerBatchFallbacks.WithLabelValues("mysql", first.Schema, first.Table).Inc()
				if err := s.fallbackRowByRow(ctx, b, run.rows); err != nil {
					return err
				}
				metrics.SinkerBatchesApplied.WithLabelValues("mysql", first.Schema, first.Table).Inc()
				continue
			}
			metrics.SinkerBatchesApplied.WithLabelValues("mysql", first.Schema, first.Table).Inc()
			continue
		}
		if err := s.fallbackRowByRow(ctx, b, run.rows); err != nil {
			return err
		}
		metrics.SinkerBatchesApplied.WithLabelValues("mysql", first.Schema, first.Table).Inc()
	}
	return nil
}

func (s *MySQLSinker) applyBatchedRun(ctx context.Context, b *querybuilder.Builder, tm *model.TableMeta, run dmlRun) error {
	rows := run.rows
	if len(tm.IDCols) > 0 {
		rows = msort.UniqueByKey(append([]model.RowEvent(nil), rows...), tm.IDCols)
	}
	var bound querybuilder.Bound
	var err error
	switch run.kind {
	case model.EventInsert:
		bound, err = b.BatchInsert(rows)
	case model.EventDelete:
		bound, err = b.BatchDelete(rows)
	default:
		return errors.New("mysql sinker: batching requested for non-batchable kind")
	}
	if err != nil {
		return err
	}
	args := make([]any, len(bound.Vals))
	for i, v := range bound.Vals {
		args[i] = v.Any()
	}
	_, err = s.DB.ExecContext(ctx, bound.SQL, args...)
	return errors.Wrap(err, "applying batched statement")
}

// fallbackRowByRow re-applies rows one at a time inside a transaction
// to localise the offending row, per spec §4.6's error-fallback rule.
func (s *MySQLSinker) fallbackRowByRow(ctx context.Context, b *querybuilder.Builder, rows []model.RowEvent) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning fallback transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, row := range rows {
		var bound querybuilder.Bound
		var err error
		switch row.Kind {
		case model.EventInsert:
			bound, err = b.Insert(row)
		case model.EventUpdate:
			bound, err = b.Update(row)
		case model.EventDelete:
			bound, err = b.Delete(row)
		}
		if err != nil {
			return err
		}
		args := make([]any, len(bound.Vals))
		for i, v := range bound.Vals {
			args[i] = v.Any()
		}
		if _, err := tx.ExecContext(ctx, bound.SQL, args...); err != nil {
			return errors.Wrapf(err, "applying row to %s.%s", row.Schema, row.Table)
		}
	}
	return errors.Wrap(tx.Commit(), "committing fallback transaction")
}

// applyDDL runs d.SQL on a dedicated connection taken from the pool;
// that connection may have served earlier statements.
func (s *MySQLSinker) applyDDL(ctx context.Context, d model.Ddl) error {
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquiring dedicated connection for DDL")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, d.SQL); err != nil {
		return errors.Wrapf(err, "applying DDL %q", d.SQL)
	}

	if d.Table != "" {
		s.Meta.Invalidate(d.Schema, d.Table)
	} else {
		s.Meta.InvalidateAll()
	}
	log.WithField("sql", d.SQL).Debug("applied DDL to mysql sinker")
	return nil
}
