package checkpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/pkg/errors"
)

// LineKind distinguishes the two line shapes spec §6 defines for the
// position log.
type LineKind string

// Supported line kinds.
const (
	LineCurrent    LineKind = "current_position"
	LineCheckpoint LineKind = "checkpoint_position"
)

// Line is one parsed record from the position log:
//
//	<timestamp> | current_position | <position JSON>
//	<timestamp> | checkpoint_position | <position JSON>
type Line struct {
	Timestamp time.Time
	Kind      LineKind
	Position  model.Position
}

// Writer appends position-log lines to a single owned file, matching
// spec §6's "keep the log writer as a single owned actor with an
// append-only file" design note. It is safe for concurrent use; the
// pipeline holds one instance and writes through it at every commit
// barrier, every checkpoint interval, and once on shutdown.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (creating if necessary) the position log at path for
// appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening position log %s", path)
	}
	return &Writer{f: f}, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// WriteCurrent appends a current_position line for the most recently
// received item.
func (w *Writer) WriteCurrent(p model.Position) error {
	return w.writeLine(LineCurrent, p)
}

// WriteCheckpoint appends a checkpoint_position line for the last
// committed position.
func (w *Writer) WriteCheckpoint(p model.Position) error {
	return w.writeLine(LineCheckpoint, p)
}

func (w *Writer) writeLine(kind LineKind, p model.Position) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshaling position")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintf(w.f, "%s | %s | %s\n", time.Now().UTC().Format(time.RFC3339Nano), kind, body)
	if err != nil {
		return errors.Wrap(err, "appending position log line")
	}
	return w.f.Sync()
}

// ReadLast reads the last n lines of the position log at path and
// returns the parseable ones among them, in file order. Unparseable
// lines are skipped rather than treated as fatal, so fewer than n
// lines may be returned.
func ReadLast(path string, n int) ([]Line, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening position log %s", path)
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading position log")
	}

	if len(all) > n {
		all = all[len(all)-n:]
	}

	var out []Line
	for _, raw := range all {
		line, ok := parseLine(raw)
		if ok {
			out = append(out, line)
		}
	}
	return out, nil
}

func parseLine(raw string) (Line, bool) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return Line{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(parts[0]))
	if err != nil {
		return Line{}, false
	}
	kind := LineKind(strings.TrimSpace(parts[1]))
	if kind != LineCurrent && kind != LineCheckpoint {
		return Line{}, false
	}
	var pos model.Position
	if err := json.Unmarshal([]byte(strings.TrimSpace(parts[2])), &pos); err != nil {
		return Line{}, false
	}
	return Line{Timestamp: ts, Kind: kind, Position: pos}, true
}
