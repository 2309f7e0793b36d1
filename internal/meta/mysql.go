package meta

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	_ "github.com/go-sql-driver/mysql" // register the mysql driver
	"github.com/pkg/errors"
)

// MySQLManager loads and caches TableMeta from information_schema and
// SHOW INDEXES, per spec §4.2.
type MySQLManager struct {
	db             *sql.DB
	loadForeignKeys bool

	mu    sync.RWMutex
	cache map[string]*model.TableMeta
}

var _ Manager = (*MySQLManager)(nil)

// NewMySQLManager wraps an existing connection pool. loadForeignKeys
// gates the expensive key_column_usage/referential_constraints join,
// off by default per spec §4.2.
func NewMySQLManager(db *sql.DB, loadForeignKeys bool) *MySQLManager {
	return &MySQLManager{db: db, loadForeignKeys: loadForeignKeys, cache: make(map[string]*model.TableMeta)}
}

func (m *MySQLManager) Get(ctx context.Context, schema, tb string) (*model.TableMeta, error) {
	schema, tb = strings.ToLower(schema), strings.ToLower(tb)
	key := schema + "." + tb

	m.mu.RLock()
	cached, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	loaded, err := m.load(ctx, schema, tb)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[key] = loaded
	m.mu.Unlock()
	return loaded, nil
}

func (m *MySQLManager) Invalidate(schema, tb string) {
	schema, tb = strings.ToLower(schema), strings.ToLower(tb)
	m.mu.Lock()
	delete(m.cache, schema+"."+tb)
	m.mu.Unlock()
}

func (m *MySQLManager) InvalidateAll() {
	m.mu.Lock()
	m.cache = make(map[string]*model.TableMeta)
	m.mu.Unlock()
}

const mysqlColumnsQuery = `
SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH,
       NUMERIC_PRECISION, NUMERIC_SCALE, CHARACTER_SET_NAME, COLUMN_TYPE
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ORDINAL_POSITION`

func (m *MySQLManager) load(ctx context.Context, schema, tb string) (*model.TableMeta, error) {
	rows, err := m.db.QueryContext(ctx, mysqlColumnsQuery, schema, tb)
	if err != nil {
		return nil, errors.Wrapf(err, "loading columns for %s.%s", schema, tb)
	}
	defer rows.Close()

	tbl := &model.TableMeta{
		Schema:   schema,
		Table:    tb,
		ColTypes: make(map[string]colval.Type),
	}
	for rows.Next() {
		var name, dataType, columnType string
		var charMaxLen, numPrecision, numScale sql.NullInt64
		var charset sql.NullString
		var columnTypeDup string
		if err := rows.Scan(&name, &dataType, &columnType, &charMaxLen, &numPrecision, &numScale, &charset, &columnTypeDup); err != nil {
			return nil, errors.Wrap(err, "scanning column metadata")
		}
		name = strings.ToLower(name)
		tbl.Cols = append(tbl.Cols, name)
		tbl.ColTypes[name] = mysqlColumnType(dataType, columnType, charMaxLen, numPrecision, numScale, charset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tbl.Cols) == 0 {
		return nil, errors.Errorf("table %s.%s has no columns or does not exist", schema, tb)
	}

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

// loadKeys runs SHOW INDEXES and builds the keyName -> ordered columns
// map, skipping non-unique rows per spec §4.2. MySQL's primary key
// name is always the literal "PRIMARY".
func (m *MySQLManager) loadKeys(ctx context.Context, schema, tb string) (map[string]model.Key, error) {
	quoted := "`" + strings.ReplaceAll(schema, "`", "``") + "`.`" + strings.ReplaceAll(tb, "`", "``") + "`"
	rows, err := m.db.QueryContext(ctx, "SHOW INDEXES FROM "+quoted)
	if err != nil {
		return nil, errors.Wrapf(err, "loading indexes for %s.%s", schema, tb)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]model.Key)
	ordinals := make(map[string]map[int]string) // keyName -> seq_in_index -> col

	for rows.Next() {
		vals := make([]sql.RawBytes, len(cols))
		scanArgs := make([]any, len(cols))
		for i := range vals {
			scanArgs[i] = &vals[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		rowMap := make(map[string]string, len(cols))
		for i, c := range cols {
			rowMap[strings.ToLower(c)] = string(vals[i])
		}
		nonUnique := rowMap["non_unique"]
		if nonUnique != "0" {
			continue
		}
		keyName := rowMap["key_name"]
		seq := rowMap["seq_in_index"]
		colName := strings.ToLower(rowMap["column_name"])
		if ordinals[keyName] == nil {
			ordinals[keyName] = make(map[int]string)
		}
		var seqNum int
		for _, c := range seq {
			if c < '0' || c > '9' {
				seqNum = 0
				break
			}
			seqNum = seqNum*10 + int(c-'0')
		}
		ordinals[keyName][seqNum] = colName
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for keyName, byOrdinal := range ordinals {
		max := 0
		for seq := range byOrdinal {
			if seq > max {
				max = seq
			}
		}
		ordered := make([]string, 0, max)
		for i := 1; i <= max; i++ {
			if c, ok := byOrdinal[i]; ok {
				ordered = append(ordered, c)
			}
		}
		keys[keyName] = model.Key{Name: keyName, Cols: ordered}
	}
	return keys, nil
}

const mysqlForeignKeysQuery = `
SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.key_column_usage
WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

func (m *MySQLManager) loadForeignKeys0(ctx context.Context, schema, tb string) ([]model.ForeignKey, error) {
	rows, err := m.db.QueryContext(ctx, mysqlForeignKeysQuery, schema, tb)
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
		fk.Cols = append(fk.Cols, strings.ToLower(col))
		fk.RefCols = append(fk.RefCols, strings.ToLower(refCol))
	}
	out := make([]model.ForeignKey, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, rows.Err()
}

// mysqlColumnType maps an information_schema row into a colval.Type.
// Labels for ENUM/SET are parsed out of COLUMN_TYPE (e.g.
// "enum('a','b')") since information_schema does not expose them as a
// separate ordinal table.
func mysqlColumnType(dataType, columnType string, charMaxLen, numPrecision, numScale sql.NullInt64, charset sql.NullString) colval.Type {
	unsigned := strings.Contains(columnType, "unsigned")
	t := colval.Type{Unsigned: unsigned, ResolveLabels: true}
	if charset.Valid {
		t.Charset = charset.String
	}

	switch dataType {
	case "tinyint":
		if strings.HasPrefix(columnType, "tinyint(1)") {
			t.Kind = colval.TypeBool
		} else {
			t.Kind = colval.TypeTinyInt
		}
	case "smallint":
		t.Kind = colval.TypeSmallInt
	case "mediumint":
		t.Kind = colval.TypeMediumInt
	case "int", "integer":
		t.Kind = colval.TypeInt
	case "bigint":
		t.Kind = colval.TypeBigInt
	case "float":
		t.Kind = colval.TypeFloat
	case "double":
		t.Kind = colval.TypeDouble
	case "decimal", "numeric":
		t.Kind = colval.TypeDecimal
		if numPrecision.Valid {
			t.Precision = int(numPrecision.Int64)
		}
		if numScale.Valid {
			t.Scale = int(numScale.Int64)
		}
	case "date":
		t.Kind = colval.TypeDate
	case "time":
		t.Kind = colval.TypeTime
	case "datetime":
		t.Kind = colval.TypeDateTime
	case "timestamp":
		t.Kind = colval.TypeTimestamp
	case "year":
		t.Kind = colval.TypeYear
	case "char", "varchar", "text", "tinytext", "mediumtext", "longtext":
		t.Kind = colval.TypeChar
		if charMaxLen.Valid {
			t.Length = int(charMaxLen.Int64)
		}
	case "binary":
		t.Kind = colval.TypeBinary
		if charMaxLen.Valid {
			t.Length = int(charMaxLen.Int64)
		}
	case "varbinary":
		t.Kind = colval.TypeVarBinary
		if charMaxLen.Valid {
			t.Length = int(charMaxLen.Int64)
		}
	case "blob", "tinyblob", "mediumblob", "longblob":
		t.Kind = colval.TypeBlob
	case "bit":
		t.Kind = colval.TypeBit
	case "set":
		t.Kind = colval.TypeSet
		t.Labels = parseEnumLabels(columnType)
	case "enum":
		t.Kind = colval.TypeEnum
		t.Labels = parseEnumLabels(columnType)
	case "json":
		t.Kind = colval.TypeJSON
	default:
		t.Kind = colval.TypeChar
	}
	return t
}

// parseEnumLabels extracts the quoted label list out of a COLUMN_TYPE
// value like "enum('a','b','c')".
func parseEnumLabels(columnType string) []string {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close < 0 || close <= open {
		return nil
	}
	body := columnType[open+1 : close]
	var labels []string
	for _, raw := range strings.Split(body, ",") {
		raw = strings.TrimSpace(raw)
		raw = strings.TrimPrefix(raw, "'")
		raw = strings.TrimSuffix(raw, "'")
		labels = append(labels, strings.ReplaceAll(raw, "''", "'"))
	}
	return labels
}
