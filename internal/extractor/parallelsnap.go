package extractor

import (
	"database/sql"
	"strconv"

	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/pkg/errors"
)

// ParallelMySQLSnapshot runs P MySQLSnapshot sub-extractors per round
// over arithmetic partitions of [start, start+P*B), per spec §4.4.1's
// parallel variant; the last sub-extractor's window has no upper
// bound. It requires an integer orderCol: the partition math is
// additive on parsed int64 cursor values.
type ParallelMySQLSnapshot struct {
	DB     *sql.DB
	Meta   meta.Manager
	Filter *filter.Filter
	Queue  *pipeline.Queue

	Schema string
	Table  string

	BatchSize      int
	ParallelSize   int
	SampleInterval int

	// StartValue seeds the first round's lower bound (empty for a
	// fresh table, or the resumer's recorded value for a restart).
	StartValue string
}

// Run drives successive rounds until a round's sub-extractors
// collectively make no progress, signaling the table is exhausted.
func (p *ParallelMySQLSnapshot) Run(sctx *stopper.Context) error {
	tm, err := p.Meta.Get(sctx, p.Schema, p.Table)
	if err != nil {
		return errors.Wrapf(err, "loading metadata for %s.%s", p.Schema, p.Table)
	}
	if tm.OrderCol == "" {
		return (&MySQLSnapshot{
			DB: p.DB, Meta: p.Meta, Filter: p.Filter, Queue: p.Queue,
			Schema: p.Schema, Table: p.Table, BatchSize: p.BatchSize, SampleInterval: p.SampleInterval,
		}).Run(sctx)
	}

	parallel := p.ParallelSize
	if parallel < 1 {
		parallel = 1
	}
	batchSize := p.BatchSize
	if batchSize < 1 {
		batchSize = 1000
	}

	start := int64(0)
	if p.StartValue != "" {
		v, err := strconv.ParseInt(p.StartValue, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parallel snapshot requires an integer orderCol, got start value %q", p.StartValue)
		}
		start = v
	}

	for {
		select {
		case <-sctx.Stopping():
			return nil
		default:
		}

		lastValues := make([]string, parallel)
		errs := make([]error, parallel)
		rowCounts := make([]int, parallel)

		subCtx := stopper.WithContext(sctx)
		window := int64(batchSize)
		for i := 0; i < parallel; i++ {
			i := i
			lower := start + int64(i)*window
			upper := start + int64(i+1)*window
			// StartValue is an exclusive bound, so every partition after
			// the first starts one below its lower edge to include it.
			if i > 0 {
				lower--
			}
			lowerStr := strconv.FormatInt(lower, 10)
			var upperStr string
			if i < parallel-1 {
				upperStr = strconv.FormatInt(upper, 10)
			}
			sub := &MySQLSnapshot{
				DB: p.DB, Meta: p.Meta, Filter: p.Filter, Queue: p.Queue,
				Schema: p.Schema, Table: p.Table,
				BatchSize: batchSize, SampleInterval: p.SampleInterval,
				StartValue: lowerStr, UpperBound: upperStr,
			}
			subCtx.Go(func() error {
				errs[i] = sub.runRound(subCtx, tm, &lastValues[i], &rowCounts[i])
				return errs[i]
			})
		}
		subCtx.Wait()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}

		total := 0
		for _, n := range rowCounts {
			total += n
		}
		if total == 0 {
			break
		}

		if err := p.Queue.Push(sctx, model.DtItem{Event: model.Commit{}}); err != nil {
			return err
		}

		// The last sub-extractor's final value, if it advanced, seeds
		// the next round; otherwise the window itself advances so a
		// sparse partition does not stall progress.
		if rowCounts[parallel-1] > 0 {
			v, err := strconv.ParseInt(lastValues[parallel-1], 10, 64)
			if err != nil {
				return errors.Wrap(err, "parsing parallel snapshot cursor")
			}
			start = v
		} else {
			start += window * int64(parallel)
		}
	}

	finish := model.NewRdbSnapshotFinished("mysql", p.Schema, p.Table)
	return p.Queue.Push(sctx, model.DtItem{Event: model.Commit{}, Position: finish})
}

// runRound pages through this sub-extractor's window batch by batch
// until a short batch or the upper bound, then reports the final
// cursor value and row count observed. Unlike runOrdered it does not
// check for shutdown between batches and pushes no finish position.
func (s *MySQLSnapshot) runRound(sctx *stopper.Context, tm *model.TableMeta, lastOut *string, countOut *int) error {
	cursor := s.StartValue
	total := 0
	for {
		rows, last, n, err := s.fetchBatch(sctx, tm, cursor, s.BatchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			total++
			item := snapshotRow("mysql", s.Schema, s.Table, tm.OrderCol, last, row)
			if s.SampleInterval > 1 && total%s.SampleInterval != 0 {
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
		if n < s.BatchSize || reachedUpper {
			break
		}
	}
	*lastOut = cursor
	*countOut = total
	return nil
}
