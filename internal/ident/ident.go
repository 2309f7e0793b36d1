// Package ident provides dialect-aware quoting for schema, table, and
// column identifiers, plus the Schema/Table value types shared across
// the metadata manager, query builder, and router.
package ident

import (
	"fmt"
	"strings"
)

// Dialect identifies the source or target SQL engine whose quoting
// rules should apply.
type Dialect int

// Supported dialects.
const (
	MySQL Dialect = iota
	PostgreSQL
)

// Schema identifies a database/schema by name, case already
// normalized by the caller (lower-cased for MySQL, as-is for
// PostgreSQL).
type Schema struct {
	Name string
}

// Table identifies a schema-qualified table.
type Table struct {
	Schema string
	Name   string
}

// String renders "schema.table" unquoted, for use as map keys and log
// messages.
func (t Table) String() string {
	return t.Schema + "." + t.Name
}

// Quote renders a single identifier using the given dialect's quoting
// rules: backticks for MySQL, double quotes for PostgreSQL.
func Quote(dialect Dialect, name string) string {
	switch dialect {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case PostgreSQL:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	default:
		return name
	}
}

// QuoteQualified renders "schema.table" with each part quoted per the
// dialect's rules.
func QuoteQualified(dialect Dialect, schema, name string) string {
	return fmt.Sprintf("%s.%s", Quote(dialect, schema), Quote(dialect, name))
}

// QuoteTable is a convenience wrapper around QuoteQualified for a Table.
func QuoteTable(dialect Dialect, t Table) string {
	return QuoteQualified(dialect, t.Schema, t.Name)
}

// QuoteCols quotes every name in cols, preserving order.
func QuoteCols(dialect Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Quote(dialect, c)
	}
	return out
}
