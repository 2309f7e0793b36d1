package extractor

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/ident"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresSnapshot is the PostgreSQL analogue of MySQLSnapshot (spec
// §4.4.3): identical batching shape, "schema"."tb" quoting and $N
// placeholders. A keyless table falls back to a single unordered
// ctid-ordered scan rather than tracking a resumable position.
type PostgresSnapshot struct {
	Pool   *pgxpool.Pool
	Meta   meta.Manager
	Filter *filter.Filter
	Queue  *pipeline.Queue

	Schema string
	Table  string

	BatchSize      int
	SampleInterval int

	StartValue string
	UpperBound string
}

func (s *PostgresSnapshot) Run(sctx *stopper.Context) error {
	tm, err := s.Meta.Get(sctx, s.Schema, s.Table)
	if err != nil {
		return errors.Wrapf(err, "loading metadata for %s.%s", s.Schema, s.Table)
	}
	if tm.OrderCol == "" {
		return s.runUnordered(sctx, tm)
	}
	return s.runOrdered(sctx, tm)
}

func (s *PostgresSnapshot) runOrdered(sctx *stopper.Context, tm *model.TableMeta) error {
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
			item := snapshotRow("postgres", s.Schema, s.Table, tm.OrderCol, last, row)
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

	finish := model.NewRdbSnapshotFinished("postgres", s.Schema, s.Table)
	return s.Queue.Push(sctx, model.DtItem{Event: model.Commit{}, Position: finish})
}

func (s *PostgresSnapshot) runUnordered(sctx *stopper.Context, tm *model.TableMeta) error {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY ctid`,
		strings.Join(ident.QuoteCols(ident.PostgreSQL, tm.Cols), ", "),
		ident.QuoteQualified(ident.PostgreSQL, s.Schema, s.Table))

	rows, err := s.Pool.Query(sctx, query)
	if err != nil {
		return errors.Wrapf(err, "unordered scan of %s.%s", s.Schema, s.Table)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanPgxRow(rows, tm)
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

	finish := model.NewRdbSnapshotFinished("postgres", s.Schema, s.Table)
	return s.Queue.Push(sctx, model.DtItem{Event: model.Commit{}, Position: finish})
}

func (s *PostgresSnapshot) fetchBatch(sctx *stopper.Context, tm *model.TableMeta, cursor string, batchSize int) ([]model.Row, string, int, error) {
	table := ident.QuoteQualified(ident.PostgreSQL, s.Schema, s.Table)
	orderCol := ident.Quote(ident.PostgreSQL, tm.OrderCol)
	cols := strings.Join(ident.QuoteCols(ident.PostgreSQL, tm.Cols), ", ")

	var conds []string
	var args []any
	if cursor != "" {
		args = append(args, cursor)
		conds = append(conds, fmt.Sprintf("%s > $%d", orderCol, len(args)))
	}
	if s.UpperBound != "" {
		args = append(args, s.UpperBound)
		conds = append(conds, fmt.Sprintf("%s < $%d", orderCol, len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, batchSize)
	query += fmt.Sprintf(" ORDER BY %s ASC LIMIT $%d", orderCol, len(args))

	rows, err := s.Pool.Query(sctx, query, args...)
	if err != nil {
		return nil, cursor, 0, errors.Wrapf(err, "fetching snapshot batch for %s.%s", s.Schema, s.Table)
	}
	defer rows.Close()

	var out []model.Row
	last := cursor
	for rows.Next() {
		row, err := scanPgxRow(rows, tm)
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

// scanPgxRow reads one pgx.Rows row into a model.Row, decoding through
// colval.FromDriverRow the same way the MySQL snapshot path does.
func scanPgxRow(rows pgx.Rows, tm *model.TableMeta) (model.Row, error) {
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
