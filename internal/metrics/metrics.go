// Package metrics holds the Prometheus collectors shared across the
// pipeline and sinker packages, in the teacher's promauto idiom
// (internal/staging/stage/metrics.go): package-level vars registered
// at init time rather than threaded through constructors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth reports how many items are currently buffered in the
	// bounded queue between extractor and pipeline (spec §4.7).
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rdb_replicate_queue_depth",
		Help: "number of DtItems currently buffered in the extractor-to-pipeline queue",
	})

	// SinkerBatchesApplied counts successful ApplyBatch calls, labeled
	// by sinker type and table.
	SinkerBatchesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rdb_replicate_sinker_batches_applied_total",
		Help: "number of batches successfully applied by a sinker",
	}, []string{"sinker", "schema", "table"})

	// SinkerBatchFallbacks counts how often a batched statement failed
	// and the sinker fell back to row-by-row application (spec §4.6).
	SinkerBatchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rdb_replicate_sinker_batch_fallbacks_total",
		Help: "number of times a batched sinker statement failed and fell back to row-by-row application",
	}, []string{"sinker", "schema", "table"})

	// CheckpointLag reports the number of seconds between the pipeline
	// receiving an item and the last committed checkpoint's timestamp.
	CheckpointLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rdb_replicate_checkpoint_lag_seconds",
		Help: "age in seconds of the most recently committed checkpoint position",
	})
)
