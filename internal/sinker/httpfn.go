package sinker

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// HTTPFnSinker implements the `/info`, `/fetch_new`, `/fetch_old`,
// `/ack` HTTP fetch contract (SPEC_FULL.md §4): rather than pushing
// rows to a target, it buffers each applied batch in memory and lets
// an external consumer pull and acknowledge them. A batch moves from
// "new" to "pending" on fetch, and out of "pending" on ack; a fetch of
// `/fetch_old` replays whatever is still pending, for a consumer that
// crashed mid-ack.
type HTTPFnSinker struct {
	ListenAddr string

	mu      sync.Mutex
	nextID  uint64
	newQ    []batchEnvelope
	pending map[uint64]batchEnvelope

	server *http.Server
}

type batchEnvelope struct {
	ID    uint64     `json:"id"`
	Items []envelope `json:"items"`
}

// Start runs the HTTP server until ctx is done. Callers typically run
// this in its own goroutine alongside the pipeline.
func (s *HTTPFnSinker) Start(ctx context.Context) error {
	s.mu.Lock()
	s.pending = make(map[uint64]batchEnvelope)
	mux := http.NewServeMux()
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/fetch_new", s.handleFetchNew)
	mux.HandleFunc("/fetch_old", s.handleFetchOld)
	mux.HandleFunc("/ack", s.handleAck)
	s.server = &http.Server{Addr: s.ListenAddr, Handler: mux}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.server.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *HTTPFnSinker) Flush(ctx context.Context) error {
	// The HTTP fetch contract hands batches off to an out-of-process
	// consumer; there is nothing this sinker can force out early
	// without that consumer's cooperation, so Flush is a no-op.
	return nil
}

func (s *HTTPFnSinker) ApplyBatch(ctx context.Context, items []model.DtItem) error {
	var envs []envelope
	for _, item := range items {
		dml, ok := item.Event.(model.Dml)
		if !ok {
			continue
		}
		env, err := encodeEnvelope(dml.Row)
		if err != nil {
			return err
		}
		envs = append(envs, env)
	}
	if len(envs) == 0 {
		return nil
	}

	s.mu.Lock()
	s.nextID++
	s.newQ = append(s.newQ, batchEnvelope{ID: s.nextID, Items: envs})
	s.mu.Unlock()
	return nil
}

func (s *HTTPFnSinker) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	newCount, pendingCount := len(s.newQ), len(s.pending)
	s.mu.Unlock()
	writeJSON(w, map[string]int{"new": newCount, "pending": pendingCount})
}

func (s *HTTPFnSinker) handleFetchNew(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if len(s.newQ) == 0 {
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	batch := s.newQ[0]
	s.newQ = s.newQ[1:]
	s.pending[batch.ID] = batch
	s.mu.Unlock()
	writeJSON(w, batch)
}

func (s *HTTPFnSinker) handleFetchOld(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	batches := make([]batchEnvelope, 0, len(s.pending))
	for _, b := range s.pending {
		batches = append(batches, b)
	}
	s.mu.Unlock()
	writeJSON(w, batches)
}

func (s *HTTPFnSinker) handleAck(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	parsed, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.pending, parsed)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode httpfn response")
	}
}
