// Package checkpoint implements the shared progress cell and the
// durable position log described in spec §4.8/§6: a single in-memory
// cell the pipeline writes and the extractor's heartbeat path reads,
// backed by an append-only log file for crash resumption.
package checkpoint

import (
	"sync"

	"github.com/cockroachdb/rdb-replicate/internal/model"
)

// Syncer is the shared {received, checkpoint} cell (spec §4.8).
// Writer: the pipeline, on each drained batch. Reader: the
// extractor's heartbeat path, which reads structured fields straight
// from the stored model.Position (e.g. the LSN to report back to a
// PostgreSQL publisher).
type Syncer struct {
	mu         sync.Mutex
	received   model.Position
	checkpoint model.Position
}

// NewSyncer returns a Syncer with both cells at the none position.
func NewSyncer() *Syncer {
	return &Syncer{received: model.NoPosition, checkpoint: model.NoPosition}
}

// SetReceived records the position of the most recently drained item,
// before it is necessarily durable.
func (s *Syncer) SetReceived(p model.Position) {
	s.mu.Lock()
	s.received = p
	s.mu.Unlock()
}

// Commit advances the checkpoint position, called only at a commit
// barrier once every sinker in the batch has acknowledged (spec
// §4.7's "flush all sinkers before advancing the checkpoint").
func (s *Syncer) Commit(p model.Position) {
	s.mu.Lock()
	s.checkpoint = p
	s.mu.Unlock()
}

// Received returns the last-received position.
func (s *Syncer) Received() model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Checkpoint returns the last-committed position.
func (s *Syncer) Checkpoint() model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint
}
