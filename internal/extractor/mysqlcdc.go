package extractor

import (
	"strconv"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/ddl"
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	gmysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MySQLCDC streams the binlog from (BinlogFile, BinlogPosition) and
// decodes row events through the shared meta cache, implementing the
// state machine of spec §4.4.2.
type MySQLCDC struct {
	Host     string
	Port     uint16
	User     string
	Password string
	ServerID uint32

	BinlogFile string
	BinlogPos  uint32

	Meta   meta.Manager
	Filter *filter.Filter
	Queue  *pipeline.Queue
}

// tableMapCache remembers the most recent TableMapEvent per table id,
// the binlog wire's only way to correlate a Rows event back to a
// schema/table name (spec §4.4.2).
type tableMapCache map[uint64]*replication.TableMapEvent

// Run connects to the binlog stream and drives the state machine until
// sctx stops or a fatal driver error occurs.
func (c *MySQLCDC) Run(sctx *stopper.Context) error {
	cfg := replication.BinlogSyncerConfig{
		ServerID: c.ServerID,
		Flavor:   "mysql",
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
	}
	syncer := replication.NewBinlogSyncer(cfg)
	defer syncer.Close()

	streamer, err := syncer.StartSync(gmysql.Position{Name: c.BinlogFile, Pos: c.BinlogPos})
	if err != nil {
		return errors.Wrap(err, "starting binlog sync")
	}

	tables := make(tableMapCache)
	file := c.BinlogFile

	for {
		select {
		case <-sctx.Stopping():
			return nil
		default:
		}

		ev, err := streamer.GetEvent(sctx)
		if err != nil {
			return errors.Wrap(err, "reading binlog event")
		}

		if err := c.handleEvent(sctx, ev, tables, &file); err != nil {
			return err
		}
	}
}

func (c *MySQLCDC) handleEvent(sctx *stopper.Context, ev *replication.BinlogEvent, tables tableMapCache, file *string) error {
	ts := int64(ev.Header.Timestamp) * 1000
	pos := model.NewMysqlCdc(c.ServerID, *file, ev.Header.LogPos, ts)

	switch e := ev.Event.(type) {
	case *replication.RotateEvent:
		*file = string(e.NextLogName)
		return nil

	case *replication.TableMapEvent:
		tables[e.TableID] = e
		return nil

	case *replication.TransactionPayloadEvent:
		// Compressed transaction payloads bundle several inner events;
		// each inherits the outer event's next_event_position since
		// the payload itself is a single binlog record (spec §4.4.2).
		for _, inner := range e.Events {
			inner.Header.LogPos = ev.Header.LogPos
			inner.Header.Timestamp = ev.Header.Timestamp
			if err := c.handleEvent(sctx, inner, tables, file); err != nil {
				return err
			}
		}
		return nil

	case *replication.RowsEvent:
		kind, ok := rowsEventKind(ev.Header.EventType)
		if !ok {
			return nil
		}
		tm, ok := tables[e.TableID]
		if !ok {
			return nil
		}
		return c.emitRows(sctx, tm, e, kind, pos)

	case *replication.QueryEvent:
		query := string(e.Query)
		if query == "BEGIN" {
			return nil
		}
		return c.handleQuery(sctx, string(e.Schema), query, pos)

	case *replication.XIDEvent:
		xid := strconv.FormatUint(e.XID, 10)
		return c.Queue.Push(sctx, model.DtItem{Event: model.Commit{Xid: xid}, Position: pos})

	default:
		return nil
	}
}

func rowsEventKind(t replication.EventType) (model.EventKind, bool) {
	switch t {
	case replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return model.EventInsert, true
	case replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return model.EventUpdate, true
	case replication.DELETE_ROWS_EVENTv1, replication.DELETE_ROWS_EVENTv2:
		return model.EventDelete, true
	default:
		return 0, false
	}
}

func (c *MySQLCDC) emitRows(sctx *stopper.Context, tm *replication.TableMapEvent, e *replication.RowsEvent, kind model.EventKind, pos model.Position) error {
	schema := string(tm.Schema)
	table := string(tm.Table)

	if c.Filter.Filter(schema, table, kind) {
		return nil
	}

	meta, err := c.Meta.Get(sctx, schema, table)
	if err != nil {
		return errors.Wrapf(err, "loading metadata for %s.%s", schema, table)
	}

	switch kind {
	case model.EventInsert:
		for _, raw := range e.Rows {
			after, err := decodeBinlogRow(meta, raw)
			if err != nil {
				return err
			}
			if err := c.pushDml(sctx, schema, table, model.EventInsert, nil, after, pos); err != nil {
				return err
			}
		}
	case model.EventDelete:
		for _, raw := range e.Rows {
			before, err := decodeBinlogRow(meta, raw)
			if err != nil {
				return err
			}
			if err := c.pushDml(sctx, schema, table, model.EventDelete, before, nil, pos); err != nil {
				return err
			}
		}
	case model.EventUpdate:
		for i := 0; i+1 < len(e.Rows); i += 2 {
			before, err := decodeBinlogRow(meta, e.Rows[i])
			if err != nil {
				return err
			}
			after, err := decodeBinlogRow(meta, e.Rows[i+1])
			if err != nil {
				return err
			}
			if err := c.pushDml(sctx, schema, table, model.EventUpdate, before, after, pos); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *MySQLCDC) pushDml(sctx *stopper.Context, schema, table string, kind model.EventKind, before, after model.Row, pos model.Position) error {
	item := model.DtItem{
		Event: model.Dml{Row: model.RowEvent{
			Schema: schema, Table: table, Kind: kind, Before: before, After: after, Position: pos,
		}},
		Position: pos,
	}
	return c.Queue.Push(sctx, item)
}

func decodeBinlogRow(tm *model.TableMeta, raw []interface{}) (model.Row, error) {
	out := make(model.Row, len(tm.Cols))
	for i, col := range tm.Cols {
		if i >= len(raw) {
			break
		}
		v, err := colval.FromBinlog(tm.ColTypes[col], raw[i])
		if err != nil {
			return nil, errors.Wrapf(err, "decoding column %s", col)
		}
		out[col] = v
	}
	return out, nil
}

// handleQuery implements spec §4.4.2's DDL-parsing-failure policy: on
// a parse failure, log, blow away the entire meta and filter cache,
// and keep streaming rather than stopping the pipeline.
func (c *MySQLCDC) handleQuery(sctx *stopper.Context, defaultSchema, query string, pos model.Position) error {
	touches, err := ddl.Parse(query, defaultSchema)
	if err != nil {
		log.WithError(err).WithField("query", query).Warn("failed to parse DDL statement, invalidating entire meta cache")
		c.Meta.InvalidateAll()
		c.Filter.InvalidateAll()
		return nil
	}

	for _, t := range touches {
		c.Meta.Invalidate(t.Schema, t.Table)
		c.Filter.Invalidate(t.Schema, t.Table)
	}

	schema, table := defaultSchema, ""
	if len(touches) == 1 {
		schema, table = touches[0].Schema, touches[0].Table
	}
	if table != "" && c.Filter.Filter(schema, table, model.EventInsert) {
		return nil
	}

	return c.Queue.Push(sctx, model.DtItem{
		Event:    model.Ddl{Schema: schema, Table: table, SQL: query},
		Position: pos,
	})
}
