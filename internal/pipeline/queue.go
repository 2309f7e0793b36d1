// Package pipeline implements the parallelizer described in spec
// §4.7: a bounded queue between extractor and sinkers, a partitioner
// that shards each drained batch across N sinker tasks, and the
// commit-barrier/checkpoint logic that ties batches back to the
// checkpoint syncer.
package pipeline

import (
	"context"

	"github.com/cockroachdb/rdb-replicate/internal/model"
)

// Queue is the bounded channel-backed MPMC queue between the
// extractor (producer) and the pipeline's drain loop (consumer). Push
// blocks cooperatively when full; Pop blocks cooperatively when
// empty, both honoring ctx cancellation (spec §4.6's "suspension
// points: ... queue push on a full queue, queue pop on an empty
// queue").
type Queue struct {
	ch chan model.DtItem
}

// NewQueue returns a Queue with the given buffer size (spec
// pipeline.buffer_size).
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan model.DtItem, size)}
}

// Push enqueues item, blocking until there is room or ctx is done.
func (q *Queue) Push(ctx context.Context, item model.DtItem) error {
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the next item, blocking until one is available or ctx
// is done. With a nil error, ok is false only when the queue has been
// closed and drained; when ctx is done, ok is false and err is ctx.Err().
func (q *Queue) Pop(ctx context.Context) (item model.DtItem, ok bool, err error) {
	select {
	case item, ok = <-q.ch:
		return item, ok, nil
	case <-ctx.Done():
		return model.DtItem{}, false, ctx.Err()
	}
}

// Close closes the queue. Callers must not Push after calling Close.
func (q *Queue) Close() {
	close(q.ch)
}

// Chan exposes the underlying channel so callers can multiplex a Pop
// against other events (tickers, shutdown) in a single select
// statement, rather than only through the blocking Pop method.
func (q *Queue) Chan() <-chan model.DtItem {
	return q.ch
}
