// Package querybuilder renders dialect-correct parameterized SQL for
// the sinker (spec §5): single-row and batched insert, update,
// delete, and select, each returning the SQL text alongside the
// ordered column names and values the caller must bind.
package querybuilder

import (
	"strings"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/ident"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/pkg/errors"
)

// Builder renders SQL for one table against one dialect. It is
// stateless beyond the table metadata it was built from; callers
// should build one per table and hold onto it across calls.
type Builder struct {
	dialect ident.Dialect
	meta    *model.TableMeta
	replace bool
}

// New returns a Builder for meta rendering SQL in dialect.
func New(dialect ident.Dialect, meta *model.TableMeta) *Builder {
	return &Builder{dialect: dialect, meta: meta}
}

// WithReplace enables idempotent-upsert insert rendering (spec
// §4.5/§4.6's `replace` setting): MySQL switches to REPLACE INTO,
// PostgreSQL appends ON CONFLICT(id_cols) DO UPDATE. Returns b for
// chaining onto New.
func (b *Builder) WithReplace(replace bool) *Builder {
	b.replace = replace
	return b
}

// Bound is one rendered statement: the SQL text, and the ordered
// column names and values to bind to its placeholders.
type Bound struct {
	SQL  string
	Cols []string
	Vals []colval.Value
}

// NullKeyInBatchDeleteError reports that a row in a batch lacked an
// id-column value, which cannot be expressed as a WHERE ... IN
// tuple member (spec §5).
type NullKeyInBatchDeleteError struct {
	Schema, Table, Col string
}

func (e *NullKeyInBatchDeleteError) Error() string {
	return "db: " + e.Schema + ", tb: " + e.Table + ", where col: " + e.Col +
		" is NULL, which should not happen in batch delete"
}

// Insert renders a single-row INSERT from ev.After.
func (b *Builder) Insert(ev model.RowEvent) (Bound, error) {
	placeholders := make([]string, len(b.meta.Cols))
	cols := make([]string, len(b.meta.Cols))
	vals := make([]colval.Value, len(b.meta.Cols))
	for i, col := range b.meta.Cols {
		placeholders[i] = b.placeholder(i+1, col)
		cols[i] = col
		vals[i] = ev.After[col]
	}

	sql := b.insertVerb() + b.qualifiedTable() +
		"(" + strings.Join(b.quoteCols(b.meta.Cols), ",") + ") VALUES(" +
		strings.Join(placeholders, ",") + ")" + b.upsertSuffix()
	return Bound{SQL: sql, Cols: cols, Vals: vals}, nil
}

// BatchInsert renders one multi-row INSERT across rows, with
// consecutive placeholder indices spanning the whole statement (spec
// §5's batching strategy).
func (b *Builder) BatchInsert(rows []model.RowEvent) (Bound, error) {
	if len(rows) == 0 {
		return Bound{}, errors.New("batch insert requires at least one row")
	}

	placeholderIndex := 1
	rowGroups := make([]string, len(rows))
	for i := range rows {
		placeholders := make([]string, len(b.meta.Cols))
		for j, col := range b.meta.Cols {
			placeholders[j] = b.placeholder(placeholderIndex, col)
			placeholderIndex++
		}
		rowGroups[i] = "(" + strings.Join(placeholders, ",") + ")"
	}

	sql := b.insertVerb() + b.qualifiedTable() +
		"(" + strings.Join(b.quoteCols(b.meta.Cols), ",") + ") VALUES" +
		strings.Join(rowGroups, ",") + b.upsertSuffix()

	var cols []string
	var vals []colval.Value
	for _, ev := range rows {
		for _, col := range b.meta.Cols {
			cols = append(cols, col)
			vals = append(vals, ev.After[col])
		}
	}
	return Bound{SQL: sql, Cols: cols, Vals: vals}, nil
}

// Update renders a single-row UPDATE: SET from ev.After, WHERE from
// ev.Before's id columns. Appends LIMIT 1 when the table has no
// usable key, matching the fallback used by Delete (spec §5).
func (b *Builder) Update(ev model.RowEvent) (Bound, error) {
	if len(ev.After) == 0 {
		return Bound{}, errors.Errorf("db: %s, tb: %s, no cols in after, which should not happen in update",
			b.meta.Schema, b.meta.Table)
	}

	placeholderIndex := 1
	setCols := make([]string, 0, len(ev.After))
	setPairs := make([]string, 0, len(ev.After))
	for _, col := range b.meta.Cols {
		if _, ok := ev.After[col]; !ok {
			continue
		}
		setCols = append(setCols, col)
		setPairs = append(setPairs, ident.Quote(b.dialect, col)+"="+b.placeholder(placeholderIndex, col))
		placeholderIndex++
	}

	whereSQL, notNullCols := b.whereClause(placeholderIndex, ev.Before)
	sql := "UPDATE " + b.qualifiedTable() + " SET " + strings.Join(setPairs, ",") + " WHERE " + whereSQL
	if len(b.meta.Keys) == 0 {
		sql += " LIMIT 1"
	}

	cols := append(append([]string(nil), setCols...), notNullCols...)
	vals := make([]colval.Value, 0, len(cols))
	for _, col := range setCols {
		vals = append(vals, ev.After[col])
	}
	for _, col := range notNullCols {
		vals = append(vals, ev.Before[col])
	}
	return Bound{SQL: sql, Cols: cols, Vals: vals}, nil
}

// Delete renders a single-row DELETE keyed on ev.Before's id columns.
func (b *Builder) Delete(ev model.RowEvent) (Bound, error) {
	whereSQL, notNullCols := b.whereClause(1, ev.Before)
	sql := "DELETE FROM " + b.qualifiedTable() + " WHERE " + whereSQL
	if len(b.meta.Keys) == 0 {
		sql += " LIMIT 1"
	}

	vals := make([]colval.Value, len(notNullCols))
	for i, col := range notNullCols {
		vals[i] = ev.Before[col]
	}
	return Bound{SQL: sql, Cols: notNullCols, Vals: vals}, nil
}

// BatchDelete renders one DELETE ... WHERE (idCols) IN (...) spanning
// every row, failing with NullKeyInBatchDeleteError if any row is
// missing an id-column value (spec §5: a NULL id cannot appear in an
// IN-tuple member).
func (b *Builder) BatchDelete(rows []model.RowEvent) (Bound, error) {
	if len(rows) == 0 {
		return Bound{}, errors.New("batch delete requires at least one row")
	}

	placeholderIndex := 1
	tuples := make([]string, len(rows))
	cols := make([]string, 0, len(rows)*len(b.meta.IDCols))
	vals := make([]colval.Value, 0, len(rows)*len(b.meta.IDCols))
	for i, ev := range rows {
		placeholders := make([]string, len(b.meta.IDCols))
		for j, col := range b.meta.IDCols {
			placeholders[j] = b.placeholder(placeholderIndex, col)
			placeholderIndex++

			v, ok := ev.Before[col]
			if !ok || v.IsNone() {
				return Bound{}, &NullKeyInBatchDeleteError{Schema: b.meta.Schema, Table: b.meta.Table, Col: col}
			}
			cols = append(cols, col)
			vals = append(vals, v)
		}
		tuples[i] = "(" + strings.Join(placeholders, ",") + ")"
	}

	sql := "DELETE FROM " + b.qualifiedTable() +
		" WHERE (" + strings.Join(b.quoteCols(b.meta.IDCols), ",") + ") IN (" +
		strings.Join(tuples, ",") + ")"
	return Bound{SQL: sql, Cols: cols, Vals: vals}, nil
}

// SelectByID renders a SELECT of every column keyed on the given id
// column values. No sinker in this module calls it.
func (b *Builder) SelectByID(idVals map[string]colval.Value) (Bound, error) {
	whereSQL, notNullCols := b.whereClause(1, idVals)
	sql := "SELECT " + strings.Join(b.quoteCols(b.meta.Cols), ",") + " FROM " + b.qualifiedTable() +
		" WHERE " + whereSQL
	if len(b.meta.Keys) == 0 {
		sql += " LIMIT 1"
	}

	vals := make([]colval.Value, len(notNullCols))
	for i, col := range notNullCols {
		vals[i] = idVals[col]
	}
	return Bound{SQL: sql, Cols: notNullCols, Vals: vals}, nil
}

// whereClause renders "id_col1 = $N AND id_col2 IS NULL AND ..." over
// the table's id columns, returning the columns that were bound (not
// NULL) so the caller knows which values to append in order.
func (b *Builder) whereClause(startIndex int, row model.Row) (string, []string) {
	var sb strings.Builder
	var notNull []string
	idx := startIndex

	for i, col := range b.meta.IDCols {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		quoted := ident.Quote(b.dialect, col)
		v, ok := row[col]
		if !ok || v.IsNone() {
			sb.WriteString(quoted)
			sb.WriteString(" IS NULL")
		} else {
			sb.WriteString(quoted)
			sb.WriteString(" = ")
			sb.WriteString(b.placeholder(idx, col))
			notNull = append(notNull, col)
			idx++
		}
	}
	return sb.String(), notNull
}

// insertVerb returns "REPLACE INTO " when replace is enabled on
// MySQL; PostgreSQL instead expresses replace through upsertSuffix's
// ON CONFLICT clause, keeping the plain INSERT verb.
func (b *Builder) insertVerb() string {
	if b.replace && b.dialect == ident.MySQL {
		return "REPLACE INTO "
	}
	return "INSERT INTO "
}

// upsertSuffix renders the PostgreSQL ON CONFLICT(id_cols) DO UPDATE
// clause used when replace is enabled (spec §4.5/§4.6). MySQL instead
// switches its statement verb via insertVerb, so this is a no-op
// there. A table with no id columns has nothing to conflict on and
// falls back to a plain insert.
func (b *Builder) upsertSuffix() string {
	if !b.replace || b.dialect != ident.PostgreSQL || len(b.meta.IDCols) == 0 {
		return ""
	}

	idSet := make(map[string]bool, len(b.meta.IDCols))
	for _, col := range b.meta.IDCols {
		idSet[col] = true
	}
	var sets []string
	for _, col := range b.meta.Cols {
		if idSet[col] {
			continue
		}
		q := ident.Quote(b.dialect, col)
		sets = append(sets, q+"=EXCLUDED."+q)
	}

	target := "(" + strings.Join(b.quoteCols(b.meta.IDCols), ",") + ")"
	if len(sets) == 0 {
		return " ON CONFLICT " + target + " DO NOTHING"
	}
	return " ON CONFLICT " + target + " DO UPDATE SET " + strings.Join(sets, ",")
}

func (b *Builder) qualifiedTable() string {
	return ident.QuoteQualified(b.dialect, b.meta.Schema, b.meta.Table)
}

func (b *Builder) quoteCols(cols []string) []string {
	return ident.QuoteCols(b.dialect, cols)
}

func (b *Builder) placeholder(index int, col string) string {
	t := b.meta.ColTypes[col]
	return colval.ToPlaceholder(b.dialect, index, t)
}

// BatchSize clamps a configured batch size to at least 1 and to the
// number of rows available, mirroring the batching loop's boundary
// handling (spec §5, §8).
func BatchSize(configured, available int) int {
	if configured < 1 {
		configured = 1
	}
	if available < configured {
		return available
	}
	return configured
}
