// Package meta implements the per-table schema cache described in
// spec §4.2: MySQL and PostgreSQL loaders behind a common Manager
// contract, invalidated by DDL and kept coherent across concurrent
// readers.
package meta

import (
	"context"

	"github.com/cockroachdb/rdb-replicate/internal/model"
)

// Manager is the contract both dialect-specific loaders satisfy.
type Manager interface {
	// Get returns the cached TableMeta for (schema, tb), loading it on
	// first access.
	Get(ctx context.Context, schema, tb string) (*model.TableMeta, error)

	// Invalidate drops the cached entry for one table.
	Invalidate(schema, tb string)

	// InvalidateAll drops every cached entry. Used by the MySQL CDC
	// extractor's DDL-parse-failure recovery path (spec §4.4.2).
	InvalidateAll()
}

// OIDIndexed is implemented only by the PostgreSQL manager, which
// additionally indexes metadata by relation OID for CDC decode and
// tracks column order as Relation messages report it (spec §4.2).
type OIDIndexed interface {
	Manager
	GetByOID(ctx context.Context, oid uint32) (*model.TableMeta, error)
	UpdateByOID(oid uint32, m *model.TableMeta)
}
