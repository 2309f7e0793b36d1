package model

import "encoding/json"

// PositionType tags the Position variant, matching the "type" field of
// the JSON form persisted to the checkpoint log (spec §6).
type PositionType string

// Supported Position variants (spec §3).
const (
	PositionNone                PositionType = ""
	PositionRdbSnapshot         PositionType = "RdbSnapshot"
	PositionRdbSnapshotFinished PositionType = "RdbSnapshotFinished"
	PositionMysqlCdc            PositionType = "MysqlCdc"
	PositionPgCdc               PositionType = "PgCdc"
)

// Position is the tagged union of every place in a source log an
// extractor can point to. It round-trips as JSON in the checkpoint
// log (spec §6).
type Position struct {
	Type PositionType `json:"type"`

	// RdbSnapshot / RdbSnapshotFinished fields.
	DBType   string `json:"db_type,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Table    string `json:"tb,omitempty"`
	OrderCol string `json:"order_col,omitempty"`
	Value    string `json:"value,omitempty"`

	// MysqlCdc fields.
	ServerID     uint32 `json:"server_id,omitempty"`
	BinlogFile   string `json:"binlog_file,omitempty"`
	NextEventPos uint32 `json:"next_event_pos,omitempty"`

	// PgCdc fields.
	LSN string `json:"lsn,omitempty"`

	// Common to MysqlCdc/PgCdc: milliseconds since the epoch.
	TimestampMillis int64 `json:"timestamp,omitempty"`
}

// NoPosition is the zero Position, used when an extraction pass keeps
// no position (e.g. an unordered single-pass scan of a keyless table).
var NoPosition = Position{Type: PositionNone}

// IsNone reports whether p carries no position information.
func (p Position) IsNone() bool { return p.Type == PositionNone }

// NewRdbSnapshot builds a snapshot-cursor position.
func NewRdbSnapshot(dbType, schema, table, orderCol, value string) Position {
	return Position{
		Type:     PositionRdbSnapshot,
		DBType:   dbType,
		Schema:   schema,
		Table:    table,
		OrderCol: orderCol,
		Value:    value,
	}
}

// NewRdbSnapshotFinished marks a table's snapshot as complete.
func NewRdbSnapshotFinished(dbType, schema, table string) Position {
	return Position{Type: PositionRdbSnapshotFinished, DBType: dbType, Schema: schema, Table: table}
}

// NewMysqlCdc builds a binlog-coordinate position.
func NewMysqlCdc(serverID uint32, file string, nextEventPos uint32, timestampMillis int64) Position {
	return Position{
		Type:            PositionMysqlCdc,
		ServerID:        serverID,
		BinlogFile:      file,
		NextEventPos:    nextEventPos,
		TimestampMillis: timestampMillis,
	}
}

// NewPgCdc builds an LSN-coordinate position.
func NewPgCdc(lsn string, timestampMillis int64) Position {
	return Position{Type: PositionPgCdc, LSN: lsn, TimestampMillis: timestampMillis}
}

// MarshalJSON and UnmarshalJSON are the default struct-tag based
// encodings; Position needs no custom logic beyond what encoding/json
// already provides, but the methods are declared explicitly so the
// checkpoint log format (spec §6) is pinned to this type rather than
// to whatever the default field order happens to be.
var (
	_ json.Marshaler   = Position{}
	_ json.Unmarshaler = (*Position)(nil)
)

func (p Position) MarshalJSON() ([]byte, error) {
	type alias Position
	return json.Marshal(alias(p))
}

func (p *Position) UnmarshalJSON(data []byte) error {
	type alias Position
	return json.Unmarshal(data, (*alias)(p))
}
