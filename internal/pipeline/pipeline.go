package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/rdb-replicate/internal/checkpoint"
	"github.com/cockroachdb/rdb-replicate/internal/metrics"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Sinker is the fanout target a pipeline shard drains into. Sinker
// implementations (internal/sinker) apply a batch of Dml/Ddl items
// and report success or a fatal error; Flush forces any buffered
// batch out immediately, used at commit barriers and shutdown.
type Sinker interface {
	ApplyBatch(ctx context.Context, items []model.DtItem) error
	Flush(ctx context.Context) error
}

// Config mirrors the [pipeline] INI section (spec §6).
type Config struct {
	BufferSize             int
	ParallelSize           int
	CheckpointIntervalSecs int
	BatchSinkIntervalSecs  int
}

// Pipeline drains a Queue, partitions each item across ParallelSize
// sinker shards, and advances the shared Syncer at commit barriers
// (spec §4.7/§4.8).
type Pipeline struct {
	cfg         Config
	queue       *Queue
	partitioner Partitioner
	shards      []Sinker
	syncer      *checkpoint.Syncer
	logWriter   *checkpoint.Writer

	buffers [][]model.DtItem
}

// New builds a Pipeline with one buffer per shard. len(shards) must
// equal cfg.ParallelSize.
func New(cfg Config, queue *Queue, partitioner Partitioner, shards []Sinker, syncer *checkpoint.Syncer, logWriter *checkpoint.Writer) (*Pipeline, error) {
	if len(shards) == 0 {
		return nil, errors.New("pipeline requires at least one sinker shard")
	}
	return &Pipeline{
		cfg:         cfg,
		queue:       queue,
		partitioner: partitioner,
		shards:      shards,
		syncer:      syncer,
		logWriter:   logWriter,
		buffers:     make([][]model.DtItem, len(shards)),
	}, nil
}

// Run drains the queue until sctx stops or the queue closes. Callers
// run it under sctx.Go so that shutdown sequencing waits for the drain
// loop to finish cleanly (spec §4.6's single-owned-actor cancellation
// model).
func (p *Pipeline) Run(sctx *stopper.Context) error {
	batchInterval := time.Duration(p.cfg.BatchSinkIntervalSecs) * time.Second
	if batchInterval <= 0 {
		batchInterval = time.Second
	}
	checkpointInterval := time.Duration(p.cfg.CheckpointIntervalSecs) * time.Second
	if checkpointInterval <= 0 {
		checkpointInterval = 10 * time.Second
	}

	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()
	checkpointTicker := time.NewTicker(checkpointInterval)
	defer checkpointTicker.Stop()

	for {
		select {
		case <-sctx.Stopping():
			return p.shutdown(sctx)

		case <-ticker.C:
			if err := p.flushAll(sctx); err != nil {
				return err
			}

		case <-checkpointTicker.C:
			if err := p.writeCheckpoint(); err != nil {
				return err
			}

		case item, ok := <-p.queue.Chan():
			if !ok {
				return p.shutdown(sctx)
			}
			if err := p.handle(sctx, item); err != nil {
				return err
			}
			metrics.QueueDepth.Set(float64(len(p.queue.Chan())))
		}
	}
}

// handle buffers one item onto its shard, eliding Begin markers and
// treating Commit as a barrier: flush every shard, then advance the
// checkpoint to the Commit item's position (spec §4.7).
func (p *Pipeline) handle(ctx context.Context, item model.DtItem) error {
	p.syncer.SetReceived(item.Position)

	switch item.Event.(type) {
	case model.Begin:
		return nil

	case model.Commit:
		if err := p.flushAll(ctx); err != nil {
			return err
		}
		p.syncer.Commit(item.Position)
		if ts := item.Position.TimestampMillis; ts > 0 {
			lag := time.Since(time.UnixMilli(ts)).Seconds()
			metrics.CheckpointLag.Set(lag)
		}
		return p.logWriter.WriteCheckpoint(item.Position)
	}

	if _, ok := item.Event.(model.Dml); ok {
		shard := p.partitioner.Shard(item, len(p.shards))
		p.buffers[shard] = append(p.buffers[shard], item)
		return nil
	}

	// Ddl and Raw items fan out to every shard: a DDL statement can
	// affect rows routed to any shard, and a Raw envelope is
	// sink-specific and opaque to the partitioner.
	for i := range p.shards {
		p.buffers[i] = append(p.buffers[i], item)
	}
	return nil
}

func (p *Pipeline) flushAll(ctx context.Context) error {
	for i, shard := range p.shards {
		if len(p.buffers[i]) == 0 {
			continue
		}
		if err := shard.ApplyBatch(ctx, p.buffers[i]); err != nil {
			return errors.Wrapf(err, "applying batch on shard %d", i)
		}
		p.buffers[i] = p.buffers[i][:0]
	}
	return nil
}

func (p *Pipeline) writeCheckpoint() error {
	return p.logWriter.WriteCurrent(p.syncer.Received())
}

// shutdown flushes in-flight buffers via each sinker's Flush, per
// spec §4.6: "cancellation during a sinker batch must either complete
// the batch ... or abort and leave the checkpoint unchanged." Partial
// buffers that have not reached a commit barrier are intentionally
// dropped without checkpointing: restart replays at-least-once from
// the last committed position.
func (p *Pipeline) shutdown(ctx context.Context) error {
	for i, shard := range p.shards {
		if err := shard.Flush(ctx); err != nil {
			log.WithError(err).Warn("error flushing sinker shard during shutdown")
		}
		p.buffers[i] = nil
	}
	if err := p.logWriter.WriteCurrent(p.syncer.Received()); err != nil {
		log.WithError(err).Warn("error writing final position on shutdown")
	}
	return nil
}
