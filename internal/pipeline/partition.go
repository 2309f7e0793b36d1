package pipeline

import (
	"hash/fnv"

	"github.com/cockroachdb/rdb-replicate/internal/model"
)

// Partitioner assigns a drained DtItem to one of N sinker shards. The
// assignment must be stable within one table's id-column values so
// that two events for the same row always land on the same shard and
// are applied in order.
type Partitioner interface {
	Shard(item model.DtItem, shardCount int) int
}

// IndexPartitioner assigns items round-robin by an explicit counter,
// used for parallel snapshot sub-extractors where each sub-extractor
// already owns a disjoint key range and item order within a shard
// does not need to track a specific row's identity.
type IndexPartitioner struct {
	next int
}

// Shard returns the next shard index, advancing the internal counter.
// Not safe for concurrent use; callers hold one IndexPartitioner per
// producer goroutine.
func (p *IndexPartitioner) Shard(_ model.DtItem, shardCount int) int {
	if shardCount < 1 {
		return 0
	}
	shard := p.next % shardCount
	p.next++
	return shard
}

// KeyHashPartitioner shards DML items by hashing their id-column
// values, the default policy for CDC streams where row order must be
// preserved per-row across Insert/Update/Delete. idCols supplies the
// id columns for each (schema, table) pair seen.
type KeyHashPartitioner struct {
	idCols map[string][]string // "schema.table" -> id columns
}

// NewKeyHashPartitioner builds a KeyHashPartitioner from a
// schema.table -> idCols map, typically populated from the metadata
// manager as tables are first seen.
func NewKeyHashPartitioner(idCols map[string][]string) *KeyHashPartitioner {
	return &KeyHashPartitioner{idCols: idCols}
}

// Shard hashes "schema.table" plus the row's id-column values (just
// "schema.table" when no id columns are known for the table).
// Non-Dml items always go to shard 0.
func (p *KeyHashPartitioner) Shard(item model.DtItem, shardCount int) int {
	if shardCount < 1 {
		return 0
	}
	dml, ok := item.Event.(model.Dml)
	if !ok {
		return 0
	}

	row := dml.Row.Before
	if row == nil {
		row = dml.Row.After
	}
	key := dml.Row.Schema + "." + dml.Row.Table
	cols := p.idCols[key]

	h := fnv.New32a()
	h.Write([]byte(key))
	for _, col := range cols {
		h.Write([]byte{0})
		if v, ok := row[col]; ok {
			h.Write([]byte(v.String()))
		}
	}
	return int(h.Sum32() % uint32(shardCount))
}
