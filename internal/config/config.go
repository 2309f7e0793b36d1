// Package config loads the INI task configuration spec §6 describes:
// one struct-mapped section per component family.
package config

import (
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/resumer"
	"github.com/cockroachdb/rdb-replicate/internal/types"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Extractor mirrors the [extractor] section.
type Extractor struct {
	DBType string `ini:"db_type"`
	URL    string `ini:"url"`

	// Mode selects which of spec.md's two per-table modes this task
	// runs: "snapshot" (one-shot read of existing rows, target tables
	// taken from the literal, non-wildcard entries of filter.do_tbs)
	// or "cdc" (continuous tailing of the source's replication log).
	Mode string `ini:"mode"`

	// MySQL CDC start point.
	BinlogFilename string `ini:"binlog_filename"`
	BinlogPosition uint32 `ini:"binlog_position"`
	ServerID       uint32 `ini:"server_id"`

	// PostgreSQL CDC start point.
	SlotName              string `ini:"slot_name"`
	PubName               string `ini:"pub_name"`
	StartLSN              string `ini:"start_lsn"`
	HeartbeatIntervalSecs int    `ini:"heartbeat_interval_secs"`

	// Snapshot batching.
	BatchSize      int `ini:"batch_size"`
	ParallelSize   int `ini:"parallel_size"`
	SampleInterval int `ini:"sample_interval"`

	LoadForeignKeys bool `ini:"load_foreign_keys"`
}

// Sinker mirrors the [sinker] section.
type Sinker struct {
	SinkType  string `ini:"sink_type"`
	URL       string `ini:"url"`
	BatchSize int    `ini:"batch_size"`
	Replace   bool   `ini:"replace"`

	// Kafka/S3/HTTP variants.
	Brokers    string `ini:"brokers"`
	Topic      string `ini:"topic"`
	Bucket     string `ini:"bucket"`
	Region     string `ini:"region"`
	ListenAddr string `ini:"listen_addr"`

	// EnableMarker wraps the sinker in the data-marker / loop-prevention
	// counter (spec §4.6), identified by MarkerID/MarkerOrigin below.
	EnableMarker bool   `ini:"enable_marker"`
	MarkerID     string `ini:"marker_id"`
	MarkerOrigin string `ini:"marker_origin"`
}

// Filter mirrors the [filter] section and maps directly onto
// filter.Config.
type Filter struct {
	DoDBs     string `ini:"do_dbs"`
	IgnoreDBs string `ini:"ignore_dbs"`
	DoTbs     string `ini:"do_tbs"`
	IgnoreTbs string `ini:"ignore_tbs"`
	DoEvents  string `ini:"do_events"`
}

// ToFilterConfig adapts the INI-mapped section to filter.Config.
func (f Filter) ToFilterConfig() filter.Config {
	return filter.Config{
		DoDBs:     f.DoDBs,
		IgnoreDBs: f.IgnoreDBs,
		DoTbs:     f.DoTbs,
		IgnoreTbs: f.IgnoreTbs,
		DoEvents:  f.DoEvents,
	}
}

// Router mirrors the [router] section.
type Router struct {
	DBMap    string `ini:"db_map"`
	TbMap    string `ini:"tb_map"`
	ColMap   string `ini:"col_map"`
	TopicMap string `ini:"topic_map"`
}

// Pipeline mirrors the [pipeline] section.
type Pipeline struct {
	BufferSize             int `ini:"buffer_size"`
	ParallelSize           int `ini:"parallel_size"`
	CheckpointIntervalSecs int `ini:"checkpoint_interval_secs"`
	BatchSinkIntervalSecs  int `ini:"batch_sink_interval_secs"`
}

// Resumer mirrors the [resumer] section.
type Resumer struct {
	ResumeFromLog bool   `ini:"resume_from_log"`
	ResumeLogDir  string `ini:"resume_log_dir"`
	TbPositions   string `ini:"tb_positions"`
	FinishedTbs   string `ini:"finished_tbs"`
}

// ToResumerConfig adapts the INI-mapped section to resumer.Config.
func (r Resumer) ToResumerConfig() resumer.Config {
	return resumer.Config{
		ResumeFromLog: r.ResumeFromLog,
		ResumeLogDir:  r.ResumeLogDir,
		TbPositions:   r.TbPositions,
		FinishedTbs:   r.FinishedTbs,
	}
}

// Runtime mirrors the [runtime] section.
type Runtime struct {
	LogLevel   string `ini:"log_level"`
	MetricsAddr string `ini:"metrics_addr"`
}

// Task is the full task configuration, one struct field per INI
// section.
type Task struct {
	Extractor Extractor
	Sinker    Sinker
	Filter    Filter
	Router    Router
	Pipeline  Pipeline
	Resumer   Resumer
	Runtime   Runtime
}

// Load reads and struct-maps every section of an INI task config
// file (spec §6).
func Load(path string) (*Task, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading task config %s", path)
	}

	var t Task
	sections := []struct {
		name string
		dst  any
	}{
		{"extractor", &t.Extractor},
		{"sinker", &t.Sinker},
		{"filter", &t.Filter},
		{"router", &t.Router},
		{"pipeline", &t.Pipeline},
		{"resumer", &t.Resumer},
		{"runtime", &t.Runtime},
	}
	for _, s := range sections {
		if err := f.Section(s.name).MapTo(s.dst); err != nil {
			return nil, errors.Wrapf(err, "mapping [%s] section", s.name)
		}
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Task) validate() error {
	switch t.Extractor.DBType {
	case "mysql", "postgres":
	default:
		return &types.ConfigError{Section: "extractor", Key: "db_type",
			Cause: errors.Errorf("must be %q or %q, got %q", "mysql", "postgres", t.Extractor.DBType)}
	}
	switch t.Extractor.Mode {
	case "snapshot", "cdc":
	default:
		return &types.ConfigError{Section: "extractor", Key: "mode",
			Cause: errors.Errorf("must be %q or %q, got %q", "snapshot", "cdc", t.Extractor.Mode)}
	}
	switch t.Sinker.SinkType {
	case "mysql", "postgres", "kafka", "s3", "httpfn":
	default:
		return &types.ConfigError{Section: "sinker", Key: "sink_type",
			Cause: errors.Errorf("unrecognized sink_type %q", t.Sinker.SinkType)}
	}
	return nil
}
