package extractor

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/ident"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/pkg/errors"
)

// MySQLSnapshot scans one table in ascending orderCol batches (spec
// §4.4.1). An empty UpperBound means the scan runs to the end of the
// table; a non-empty one is used by the parallel-snapshot coordinator to
// bound all but the last sub-extractor's window.
type MySQLSnapshot struct {
	DB     *sql.DB
	Meta   meta.Manager
	Filter *filter.Filter
	Queue  *pipeline.Queue

	Schema string
	Table  string

	BatchSize      int
	SampleInterval int

	// StartValue is the exclusive lower bound (empty means "from the
	// start of the table"), typically seeded from the resumer for a
	// partially-completed table.
	StartValue string
	// UpperBound is the exclusive upper bound, empty for an open-ended
	// scan.
	UpperBound string
}

// Run drives one table's snapshot to completion, or until sctx stops.
func (s *MySQLSnapshot) Run(sctx *stopper.Context) error {
	tm, err := s.Meta.Get(sctx, s.Schema, s.Table)
	if err != nil {
		return errors.Wrapf(err, "loading metadata for %s.%s", s.Schema, s.Table)
	}

	if tm.OrderCol == "" {
		return s.runUnordered(sctx, tm)
	}
	return s.runOrdered(sctx, tm)
}

func (s *MySQLSnapshot) runOrdered(sctx *stopper.Context, tm *model.TableMeta) error {
	batchSize := s.BatchSize
	if batchSize < 1 {
		batchSize = 1000
	}
	cursor := s.StartValue
	seen := 0

	for {
		select {
		case <-sctx.Stopping():
			return nil
		default:
		}

		rows, last, n, err := s.fetchBatch(sctx, tm, cursor, batchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			seen++
			item := snapshotRow("mysql", s.Schema, s.Table, tm.OrderCol, last, row)
			if s.SampleInterval > 1 && seen%s.SampleInterval != 0 {
				item.Position = model.NoPosition
			}
			if err := s.Queue.Push(sctx, item); err != nil {
				return err
			}
		}
		if n > 0 {
			cursor = last
		}

		reachedUpper := s.UpperBound != "" && cursor != "" && !lessLexNumeric(cursor, s.UpperBound)
		if n < batchSize || reachedUpper {
			break
		}
	}

	finish := model.NewRdbSnapshotFinished("mysql", s.Schema, s.Table)
	return s.Queue.Push(sctx, model.DtItem{Event: model.Commit{}, Position: finish})
}

func (s *MySQLSnapshot) runUnordered(sctx *stopper.Context, tm *model.TableMeta) error {
	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(ident.QuoteCols(ident.MySQL, tm.Cols), ", "),
		ident.QuoteQualified(ident.MySQL, s.Schema, s.Table))

	rows, err := s.DB.QueryContext(sctx, query)
	if err != nil {
		return errors.Wrapf(err, "unordered scan of %s.%s", s.Schema, s.Table)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanRow(rows, tm)
		if err != nil {
			return err
		}
		item := model.DtItem{
			Event: model.Dml{Row: model.RowEvent{
				Schema: s.Schema, Table: s.Table, Kind: model.EventInsert, After: row,
			}},
			Position: model.NoPosition,
		}
		if err := s.Queue.Push(sctx, item); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "scanning unordered snapshot rows")
	}

	finish := model.NewRdbSnapshotFinished("mysql", s.Schema, s.Table)
	return s.Queue.Push(sctx, model.DtItem{Event: model.Commit{}, Position: finish})
}

// fetchBatch runs one page of the ordered scan and returns the
// decoded rows, the last row's orderCol value as a string, and the
// row count.
func (s *MySQLSnapshot) fetchBatch(sctx *stopper.Context, tm *model.TableMeta, cursor string, batchSize int) ([]model.Row, string, int, error) {
	table := ident.QuoteQualified(ident.MySQL, s.Schema, s.Table)
	orderCol := ident.Quote(ident.MySQL, tm.OrderCol)
	cols := strings.Join(ident.QuoteCols(ident.MySQL, tm.Cols), ", ")

	var conds []string
	var args []any
	if cursor != "" {
		conds = append(conds, fmt.Sprintf("%s > ?", orderCol))
		args = append(args, cursor)
	}
	if s.UpperBound != "" {
		conds = append(conds, fmt.Sprintf("%s < ?", orderCol))
		args = append(args, s.UpperBound)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s ASC LIMIT ?", orderCol)
	args = append(args, batchSize)

	rows, err := s.DB.QueryContext(sctx, query, args...)
	if err != nil {
		return nil, cursor, 0, errors.Wrapf(err, "fetching snapshot batch for %s.%s", s.Schema, s.Table)
	}
	defer rows.Close()

	var out []model.Row
	last := cursor
	for rows.Next() {
		row, err := scanRow(rows, tm)
		if err != nil {
			return nil, cursor, 0, err
		}
		out = append(out, row)
		if v, ok := row[tm.OrderCol]; ok {
			last = v.String()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, 0, errors.Wrap(err, "scanning snapshot batch")
	}
	return out, last, len(out), nil
}

// scanRow reads one *sql.Rows row into a model.Row keyed by tm.Cols,
// decoding through colval.FromDriverRow so the result matches the
// decoded shape CDC rows use.
func scanRow(rows *sql.Rows, tm *model.TableMeta) (model.Row, error) {
	raw := make([]any, len(tm.Cols))
	ptrs := make([]any, len(tm.Cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, errors.Wrap(err, "scanning row")
	}

	out := make(model.Row, len(tm.Cols))
	for i, col := range tm.Cols {
		v, err := colval.FromDriverRow(tm.ColTypes[col], raw[i])
		if err != nil {
			return nil, errors.Wrapf(err, "decoding column %s", col)
		}
		out[col] = v
	}
	return out, nil
}

// lessLexNumeric compares two orderCol cursor values, preferring a
// numeric comparison (the common case: an integer orderCol) and
// falling back to lexical comparison for non-numeric keys.
func lessLexNumeric(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
