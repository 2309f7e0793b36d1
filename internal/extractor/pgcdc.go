package extractor

import (
	"fmt"
	"time"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// PostgresCDC opens a logical-replication slot and decodes pgoutput
// messages into DtItems, implementing spec §4.4.4's message table.
type PostgresCDC struct {
	Conn *pgconn.PgConn

	SlotName string
	PubName  string
	StartLSN string

	HeartbeatInterval time.Duration

	Meta   meta.OIDIndexed
	Filter *filter.Filter
	Queue  *pipeline.Queue
	Syncer checkpointReader
}

// checkpointReader is the minimal view PostgresCDC needs of the
// pipeline's shared checkpoint cell: the LSN to report in standby
// status updates comes from the pipeline's committed position, not
// the extractor's own in-flight position (spec §4.4.4's heartbeat
// note).
type checkpointReader interface {
	Checkpoint() model.Position
}

func (c *PostgresCDC) Run(sctx *stopper.Context) error {
	startLSN, err := pglogrepl.ParseLSN(c.StartLSN)
	if err != nil {
		return errors.Wrapf(err, "parsing start LSN %q", c.StartLSN)
	}

	pluginArgs := []string{
		"proto_version '1'",
		fmt.Sprintf("publication_names '%s'", c.PubName),
	}
	if err := pglogrepl.StartReplication(sctx, c.Conn, c.SlotName, startLSN,
		pglogrepl.StartReplicationOptions{PluginArgs: pluginArgs}); err != nil {
		return errors.Wrap(err, "starting logical replication")
	}

	interval := c.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	state := &pgCDCState{lastTxEndLSN: startLSN}

	// ReceiveMessage blocks, so it runs on its own goroutine feeding a
	// channel; the main loop multiplexes that against the heartbeat
	// ticker and shutdown without either starving the other.
	type received struct {
		msg pgproto3.BackendMessage
		err error
	}
	msgs := make(chan received, 1)
	sctx.Go(func() error {
		for {
			msg, err := c.Conn.ReceiveMessage(sctx)
			select {
			case msgs <- received{msg, err}:
			case <-sctx.Stopping():
				return nil
			}
			if err != nil {
				return nil
			}
		}
	})

	for {
		select {
		case <-sctx.Stopping():
			return nil

		case <-ticker.C:
			if err := c.sendStandbyStatus(sctx); err != nil {
				return err
			}

		case r := <-msgs:
			if r.err != nil {
				return errors.Wrap(r.err, "receiving replication message")
			}
			if err := c.handleMessage(sctx, r.msg, state); err != nil {
				return err
			}
		}
	}
}

func (c *PostgresCDC) handleMessage(sctx *stopper.Context, msg pgproto3.BackendMessage, state *pgCDCState) error {
	cd, ok := msg.(*pgproto3.CopyData)
	if !ok || len(cd.Data) == 0 {
		return nil
	}

	switch cd.Data[0] {
	case pglogrepl.PrimaryKeepaliveMessageByteID:
		ka, err := pglogrepl.ParsePrimaryKeepaliveMessage(cd.Data[1:])
		if err != nil {
			return errors.Wrap(err, "parsing keepalive")
		}
		if ka.ReplyRequested {
			return c.sendStandbyStatus(sctx)
		}
		return nil

	case pglogrepl.XLogDataByteID:
		xld, err := pglogrepl.ParseXLogData(cd.Data[1:])
		if err != nil {
			return errors.Wrap(err, "parsing XLogData")
		}
		return c.handleWALData(sctx, xld, state)

	default:
		return nil
	}
}

// pgCDCState tracks the fields the message table needs across calls:
// the position held at the previous commit boundary, and the
// in-progress transaction's timestamp/xid.
type pgCDCState struct {
	lastTxEndLSN pglogrepl.LSN
	txTimestamp  time.Time
	txXid        uint32
}

func (c *PostgresCDC) handleWALData(sctx *stopper.Context, xld pglogrepl.XLogData, state *pgCDCState) error {
	msg, err := pglogrepl.Parse(xld.WALData)
	if err != nil {
		return errors.Wrap(err, "parsing logical replication message")
	}

	switch m := msg.(type) {
	case *pglogrepl.RelationMessage:
		return c.handleRelation(sctx, m)

	case *pglogrepl.BeginMessage:
		state.txTimestamp = m.CommitTime
		state.txXid = m.Xid
		return nil

	case *pglogrepl.CommitMessage:
		state.lastTxEndLSN = m.TransactionEndLSN
		pos := model.NewPgCdc(state.lastTxEndLSN.String(), state.txTimestamp.UnixMilli())
		return c.Queue.Push(sctx, model.DtItem{
			Event:    model.Commit{Xid: fmt.Sprintf("%d", state.txXid)},
			Position: pos,
		})

	case *pglogrepl.InsertMessage:
		pos := model.NewPgCdc(state.lastTxEndLSN.String(), state.txTimestamp.UnixMilli())
		return c.handleInsert(sctx, m, pos)

	case *pglogrepl.UpdateMessage:
		pos := model.NewPgCdc(state.lastTxEndLSN.String(), state.txTimestamp.UnixMilli())
		return c.handleUpdate(sctx, m, pos)

	case *pglogrepl.DeleteMessage:
		pos := model.NewPgCdc(state.lastTxEndLSN.String(), state.txTimestamp.UnixMilli())
		return c.handleDelete(sctx, m, pos)

	default:
		// Origin, Type, Truncate: ignored per spec §4.4.4.
		return nil
	}
}

// handleRelation keeps the oid-indexed meta cache in step with the
// wire's column order and, if the table is filtered out, installs a
// mock entry so DML decode still finds an oid->meta mapping.
func (c *PostgresCDC) handleRelation(sctx *stopper.Context, m *pglogrepl.RelationMessage) error {
	if c.Filter.FilterDB(m.Namespace) || c.Filter.Filter(m.Namespace, m.RelationName, model.EventInsert) {
		c.Meta.UpdateByOID(m.RelationID, &model.TableMeta{
			Schema: m.Namespace, Table: m.RelationName, OID: m.RelationID,
		})
		return nil
	}

	tm, err := c.Meta.Get(sctx, m.Namespace, m.RelationName)
	if err != nil {
		return errors.Wrapf(err, "loading metadata for %s.%s", m.Namespace, m.RelationName)
	}

	cols := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		cols[i] = col.Name
	}
	clone := *tm
	clone.OID = m.RelationID
	clone.Cols = cols
	c.Meta.UpdateByOID(m.RelationID, &clone)
	return nil
}

func (c *PostgresCDC) handleInsert(sctx *stopper.Context, m *pglogrepl.InsertMessage, pos model.Position) error {
	tm, err := c.Meta.GetByOID(sctx, m.RelationID)
	if err != nil {
		return errors.Wrapf(err, "looking up relation %d", m.RelationID)
	}
	if c.Filter.Filter(tm.Schema, tm.Table, model.EventInsert) {
		return nil
	}
	after, err := decodeTuple(tm, m.Tuple)
	if err != nil {
		return err
	}
	return c.push(sctx, tm, model.EventInsert, nil, after, pos)
}

func (c *PostgresCDC) handleDelete(sctx *stopper.Context, m *pglogrepl.DeleteMessage, pos model.Position) error {
	tm, err := c.Meta.GetByOID(sctx, m.RelationID)
	if err != nil {
		return errors.Wrapf(err, "looking up relation %d", m.RelationID)
	}
	if c.Filter.Filter(tm.Schema, tm.Table, model.EventDelete) {
		return nil
	}
	before, err := decodeTuple(tm, m.OldTuple)
	if err != nil {
		return err
	}
	return c.push(sctx, tm, model.EventDelete, before, nil, pos)
}

func (c *PostgresCDC) handleUpdate(sctx *stopper.Context, m *pglogrepl.UpdateMessage, pos model.Position) error {
	tm, err := c.Meta.GetByOID(sctx, m.RelationID)
	if err != nil {
		return errors.Wrapf(err, "looking up relation %d", m.RelationID)
	}
	if c.Filter.Filter(tm.Schema, tm.Table, model.EventUpdate) {
		return nil
	}
	after, err := decodeTuple(tm, m.NewTuple)
	if err != nil {
		return err
	}

	// Before resolution per spec §4.4.4: old_tuple if present, else
	// key_tuple, else project idCols from after.
	var before model.Row
	switch {
	case m.OldTuple != nil:
		before, err = decodeTuple(tm, m.OldTuple)
	default:
		before = make(model.Row, len(tm.IDCols))
		for _, col := range tm.IDCols {
			if v, ok := after[col]; ok {
				before[col] = v
			}
		}
	}
	if err != nil {
		return err
	}
	return c.push(sctx, tm, model.EventUpdate, before, after, pos)
}

func (c *PostgresCDC) push(sctx *stopper.Context, tm *model.TableMeta, kind model.EventKind, before, after model.Row, pos model.Position) error {
	item := model.DtItem{
		Event: model.Dml{Row: model.RowEvent{
			Schema: tm.Schema, Table: tm.Table, Kind: kind, Before: before, After: after, Position: pos,
		}},
		Position: pos,
	}
	return c.Queue.Push(sctx, item)
}

// decodeTuple walks a TupleData column-by-column; an UnchangedToast
// column is fatal per spec §4.4.4's replica-identity requirement.
func decodeTuple(tm *model.TableMeta, tuple *pglogrepl.TupleData) (model.Row, error) {
	if tuple == nil {
		return nil, nil
	}
	out := make(model.Row, len(tuple.Columns))
	for i, col := range tuple.Columns {
		name := ""
		if i < len(tm.Cols) {
			name = tm.Cols[i]
		} else {
			continue
		}
		switch col.DataType {
		case 'n':
			out[name] = colval.None
		case 'u':
			return nil, errors.Errorf(
				"unchanged TOAST value for column %s.%s.%s: set REPLICA IDENTITY FULL on this table",
				tm.Schema, tm.Table, name)
		case 't':
			v, err := colval.FromText(tm.ColTypes[name], string(col.Data))
			if err != nil {
				return nil, errors.Wrapf(err, "decoding column %s", name)
			}
			out[name] = v
		default:
			out[name] = colval.NewBlob(col.Data)
		}
	}
	return out, nil
}

func (c *PostgresCDC) sendStandbyStatus(sctx *stopper.Context) error {
	lsn := pglogrepl.LSN(0)
	if c.Syncer != nil {
		if parsed, err := pglogrepl.ParseLSN(c.Syncer.Checkpoint().LSN); err == nil {
			lsn = parsed
		}
	}
	if err := pglogrepl.SendStandbyStatusUpdate(sctx, c.Conn, pglogrepl.StandbyStatusUpdate{
		WALWritePosition: lsn,
	}); err != nil {
		return errors.Wrap(err, "sending standby status update")
	}
	log.WithField("lsn", lsn.String()).Debug("sent standby status update")
	return nil
}
