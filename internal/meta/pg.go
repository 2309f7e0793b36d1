package meta

import (
	"context"
	"sync"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresManager loads and caches TableMeta from pg_catalog, indexed
// both by (schema, table) and by relation OID, per spec §4.2. The OID
// index exists because logical-replication Relation messages identify
// tables by OID, not name.
type PostgresManager struct {
	pool            *pgxpool.Pool
	loadForeignKeys bool

	mu       sync.RWMutex
	byName   map[string]*model.TableMeta
	byOID    map[uint32]*model.TableMeta
}

var _ Manager = (*PostgresManager)(nil)
var _ OIDIndexed = (*PostgresManager)(nil)

func NewPostgresManager(pool *pgxpool.Pool, loadForeignKeys bool) *PostgresManager {
	return &PostgresManager{
		pool:            pool,
		loadForeignKeys: loadForeignKeys,
		byName:          make(map[string]*model.TableMeta),
		byOID:           make(map[uint32]*model.TableMeta),
	}
}

func (m *PostgresManager) Get(ctx context.Context, schema, tb string) (*model.TableMeta, error) {
	key := schema + "." + tb

	m.mu.RLock()
	cached, ok := m.byName[key]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	loaded, err := m.load(ctx, schema, tb)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.byName[key] = loaded
	m.byOID[loaded.OID] = loaded
	m.mu.Unlock()
	return loaded, nil
}

// GetByOID returns the cached entry for a relation OID, loading the
// full table catalog once per OID if not yet seen. Used by the CDC
// decode path when a Relation message identifies a table before any
// DML has been seen for it by name.
func (m *PostgresManager) GetByOID(ctx context.Context, oid uint32) (*model.TableMeta, error) {
	m.mu.RLock()
	cached, ok := m.byOID[oid]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	schema, tb, err := m.resolveOID(ctx, oid)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, schema, tb)
}

// UpdateByOID replaces the cached entry for oid outright, used when a
// Relation message reports a column order or set that differs from
// what was loaded from the catalog (spec §4.2).
func (m *PostgresManager) UpdateByOID(oid uint32, meta *model.TableMeta) {
	m.mu.Lock()
	m.byOID[oid] = meta
	m.byName[meta.Schema+"."+meta.Table] = meta
	m.mu.Unlock()
}

func (m *PostgresManager) Invalidate(schema, tb string) {
	key := schema + "." + tb
	m.mu.Lock()
	if existing, ok := m.byName[key]; ok {
		delete(m.byOID, existing.OID)
	}
	delete(m.byName, key)
	m.mu.Unlock()
}

func (m *PostgresManager) InvalidateAll() {
	m.mu.Lock()
	m.byName = make(map[string]*model.TableMeta)
	m.byOID = make(map[uint32]*model.TableMeta)
	m.mu.Unlock()
}

const pgResolveOIDQuery = `
SELECT n.nspname, c.relname
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.oid = $1`

func (m *PostgresManager) resolveOID(ctx context.Context, oid uint32) (schema, tb string, err error) {
	row := m.pool.QueryRow(ctx, pgResolveOIDQuery, oid)
	if err := row.Scan(&schema, &tb); err != nil {
		return "", "", errors.Wrapf(err, "resolving relation oid %d", oid)
	}
	return schema, tb, nil
}

const pgColumnsQuery = `
SELECT a.attname, t.typname, a.atttypmod, col.character_maximum_length,
       col.numeric_precision, col.numeric_scale, c.oid
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_type t ON t.oid = a.atttypid
JOIN information_schema.columns col
  ON col.table_schema = n.nspname AND col.table_name = c.relname AND col.column_name = a.attname
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

func (m *PostgresManager) load(ctx context.Context, schema, tb string) (*model.TableMeta, error) {
	rows, err := m.pool.Query(ctx, pgColumnsQuery, schema, tb)
	if err != nil {
		return nil, errors.Wrapf(err, "loading columns for %s.%s", schema, tb)
	}
	defer rows.Close()

	tbl := &model.TableMeta{
		Schema:   schema,
		Table:    tb,
		ColTypes: make(map[string]colval.Type),
	}
	var oid uint32
	for rows.Next() {
		var name, typName string
		var typmod int32
		var charMaxLen, numPrecision, numScale *int
		if err := rows.Scan(&name, &typName, &typmod, &charMaxLen, &numPrecision, &numScale, &oid); err != nil {
			return nil, errors.Wrap(err, "scanning column metadata")
		}
		tbl.Cols = append(tbl.Cols, name)
		tbl.ColTypes[name] = pgColumnType(typName, typmod, charMaxLen, numPrecision, numScale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tbl.Cols) == 0 {
		return nil, errors.Errorf("table %s.%s has no columns or does not exist", schema, tb)
	}
	tbl.OID = oid

	keys, err := m.loadKeys(ctx, schema, tb)
	if err != nil {
		return nil, err
	}
	tbl.Keys = keys

	isInt := func(col string) bool {
		t, ok := tbl.ColTypes[col]
		if !ok {
			return false
		}
		switch t.Kind {
		case colval.TypeTinyInt, colval.TypeSmallInt, colval.TypeMediumInt, colval.TypeInt, colval.TypeBigInt:
			return true
		default:
			return false
		}
	}
	tbl.OrderCol, tbl.IDCols = model.DeriveOrderAndID(keys, tbl.Cols, isInt)

	if m.loadForeignKeys {
		fks, err := m.loadForeignKeys0(ctx, schema, tb)
		if err != nil {
			return nil, err
		}
		tbl.ForeignKeys = fks
	}

	return tbl, nil
}

const pgKeysQuery = `
SELECT tc.constraint_name, tc.constraint_type, kcu.column_name, kcu.ordinal_position
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2
  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
ORDER BY tc.constraint_name, kcu.ordinal_position`

func (m *PostgresManager) loadKeys(ctx context.Context, schema, tb string) (map[string]model.Key, error) {
	rows, err := m.pool.Query(ctx, pgKeysQuery, schema, tb)
	if err != nil {
		return nil, errors.Wrapf(err, "loading keys for %s.%s", schema, tb)
	}
	defer rows.Close()

	type entry struct {
		isPrimary bool
		cols      map[int]string
	}
	byName := make(map[string]*entry)
	var order []string
	for rows.Next() {
		var name, ctype, col string
		var ordinal int
		if err := rows.Scan(&name, &ctype, &col, &ordinal); err != nil {
			return nil, err
		}
		e, ok := byName[name]
		if !ok {
			e = &entry{isPrimary: ctype == "PRIMARY KEY", cols: make(map[int]string)}
			byName[name] = e
			order = append(order, name)
		}
		e.cols[ordinal] = col
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keys := make(map[string]model.Key)
	for _, name := range order {
		e := byName[name]
		max := 0
		for ord := range e.cols {
			if ord > max {
				max = ord
			}
		}
		ordered := make([]string, 0, max)
		for i := 1; i <= max; i++ {
			if c, ok := e.cols[i]; ok {
				ordered = append(ordered, c)
			}
		}
		keyName := name
		if e.isPrimary {
			keyName = "PRIMARY"
		}
		keys[keyName] = model.Key{Name: keyName, Cols: ordered}
	}
	return keys, nil
}

const pgForeignKeysQuery = `
SELECT tc.constraint_name, kcu.column_name, ccu.table_schema, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'FOREIGN KEY'
ORDER BY tc.constraint_name, kcu.ordinal_position`

func (m *PostgresManager) loadForeignKeys0(ctx context.Context, schema, tb string) ([]model.ForeignKey, error) {
	rows, err := m.pool.Query(ctx, pgForeignKeysQuery, schema, tb)
	if err != nil {
		return nil, errors.Wrapf(err, "loading foreign keys for %s.%s", schema, tb)
	}
	defer rows.Close()

	byName := make(map[string]*model.ForeignKey)
	var order []string
	for rows.Next() {
		var name, col, refSchema, refTable, refCol string
		if err := rows.Scan(&name, &col, &refSchema, &refTable, &refCol); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &model.ForeignKey{Name: name, RefSchema: refSchema, RefTable: refTable}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Cols = append(fk.Cols, col)
		fk.RefCols = append(fk.RefCols, refCol)
	}
	out := make([]model.ForeignKey, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, rows.Err()
}

// pgColumnType maps a pg_type/information_schema row into a
// colval.Type. PostgreSQL exposes array and domain types that are out
// of scope here (spec's column-type cross-product is scalar-only);
// unrecognized type names fall back to TypeChar, same as MySQL.
func pgColumnType(typName string, typmod int32, charMaxLen, numPrecision, numScale *int) colval.Type {
	t := colval.Type{}
	switch typName {
	case "int2":
		t.Kind = colval.TypeSmallInt
	case "int4":
		t.Kind = colval.TypeInt
	case "int8":
		t.Kind = colval.TypeBigInt
	case "float4":
		t.Kind = colval.TypeFloat
	case "float8":
		t.Kind = colval.TypeDouble
	case "numeric":
		t.Kind = colval.TypeDecimal
		if numPrecision != nil {
			t.Precision = *numPrecision
		}
		if numScale != nil {
			t.Scale = *numScale
		}
	case "bool":
		t.Kind = colval.TypeBool
	case "date":
		t.Kind = colval.TypeDate
	case "time", "timetz":
		t.Kind = colval.TypeTime
	case "timestamp":
		t.Kind = colval.TypeDateTime
	case "timestamptz":
		t.Kind = colval.TypeTimestamp
	case "bpchar", "varchar", "text", "name":
		t.Kind = colval.TypeChar
		if charMaxLen != nil {
			t.Length = *charMaxLen
		}
	case "bytea":
		t.Kind = colval.TypeBlob
	case "bit", "varbit":
		t.Kind = colval.TypeBit
		if typmod > 0 {
			t.Length = int(typmod)
		}
	case "json", "jsonb":
		t.Kind = colval.TypeJSON
	default:
		t.Kind = colval.TypeChar
	}
	return t
}
