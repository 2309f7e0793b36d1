// Package model holds the data model shared by every component of the
// dataplane: table metadata, row events, replication positions, and
// the queue item envelope. See spec §3.
package model

import "github.com/cockroachdb/rdb-replicate/internal/colval"

// Key names a unique or primary key on a table.
type Key struct {
	Name string
	Cols []string
}

// TableMeta is the per-table schema cache entry described in spec
// §3/§4.2. Two instances for the same (Schema, Table) must compare
// equal; Cols preserves definition order except when a PostgreSQL
// Relation message rewrites it to match the wire stream.
type TableMeta struct {
	Schema string
	Table  string

	// OID is set only for PostgreSQL tables, where it is the primary
	// lookup key for CDC decode (relation-id indexed).
	OID uint32

	Cols       []string
	ColTypes   map[string]colval.Type
	Keys       map[string]Key // keyName -> ordered columns
	ForeignKeys []ForeignKey

	// OrderCol is the column chosen to paginate snapshot extraction; it
	// is empty when the table has no usable single-column key (spec
	// §3's orderCol selection policy).
	OrderCol string

	// IDCols are the columns used to locate a row in the target for
	// update/delete.
	IDCols []string
}

// ForeignKey describes a single foreign-key constraint, loaded only
// when metadata loading has foreign keys enabled (spec §4.2: "gated
// behind a flag because the query is expensive").
type ForeignKey struct {
	Name       string
	Cols       []string
	RefSchema  string
	RefTable   string
	RefCols    []string
}

// Equal reports whether two TableMeta values describe the same schema,
// used by the §8 invariant that repeated Get calls return
// byte-identical metadata absent an intervening invalidation.
func (m *TableMeta) Equal(other *TableMeta) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Schema != other.Schema || m.Table != other.Table || m.OID != other.OID {
		return false
	}
	if m.OrderCol != other.OrderCol || len(m.Cols) != len(other.Cols) {
		return false
	}
	for i, c := range m.Cols {
		if other.Cols[i] != c {
			return false
		}
	}
	if len(m.IDCols) != len(other.IDCols) {
		return false
	}
	for i, c := range m.IDCols {
		if other.IDCols[i] != c {
			return false
		}
	}
	return true
}

// DeriveOrderAndID implements spec §4.2's orderCol/idCols derivation
// policy: orderCol is the sole column of a single-column primary key,
// else the sole column of the smallest single-column unique key on an
// integer column, else none. idCols are the primary key's columns
// whenever one exists (composite or not), else the chosen unique key's
// columns, else every column.
func DeriveOrderAndID(keys map[string]Key, allCols []string, isIntegerCol func(col string) bool) (orderCol string, idCols []string) {
	if pk, ok := keys["PRIMARY"]; ok {
		idCols = append([]string(nil), pk.Cols...)
		if len(pk.Cols) == 1 {
			return pk.Cols[0], idCols
		}
		if best, ok := bestSingleColumnUniqueKey(keys, isIntegerCol); ok {
			return best.Cols[0], idCols
		}
		return "", idCols
	}

	if best, ok := bestSingleColumnUniqueKey(keys, isIntegerCol); ok {
		return best.Cols[0], append([]string(nil), best.Cols...)
	}

	// No usable key: non-resumable, and idCols fall back to every
	// column (spec §4.2).
	return "", append([]string(nil), allCols...)
}

// bestSingleColumnUniqueKey picks the smallest (by column name)
// non-primary single-column integer key, the spec §4.2 tiebreaker when
// more than one qualifies.
func bestSingleColumnUniqueKey(keys map[string]Key, isIntegerCol func(col string) bool) (Key, bool) {
	var best Key
	haveBest := false
	for name, k := range keys {
		if name == "PRIMARY" || len(k.Cols) != 1 {
			continue
		}
		if !isIntegerCol(k.Cols[0]) {
			continue
		}
		if !haveBest || k.Cols[0] < best.Cols[0] {
			best = k
			haveBest = true
		}
	}
	return best, haveBest
}
