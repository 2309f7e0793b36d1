package colval

import (
	"fmt"

	"github.com/cockroachdb/rdb-replicate/internal/ident"
)

// ToPlaceholder renders a bound-parameter marker for the given
// 1-based index, per spec §4.1: MySQL always uses the bare "?";
// PostgreSQL uses "$N::<short_type>", with "bit" rewritten to
// "varbit" since PostgreSQL refuses to cast a bound parameter
// directly to an unqualified bit type.
func ToPlaceholder(dialect ident.Dialect, index int, t Type) string {
	if dialect == ident.MySQL {
		return "?"
	}
	return fmt.Sprintf("$%d::%s", index, pgShortType(t))
}

func pgShortType(t Type) string {
	switch t.Kind {
	case TypeTinyInt, TypeSmallInt:
		return "int2"
	case TypeMediumInt, TypeInt:
		return "int4"
	case TypeBigInt:
		return "int8"
	case TypeFloat:
		return "float4"
	case TypeDouble:
		return "float8"
	case TypeDecimal:
		return "numeric"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDateTime:
		return "timestamp"
	case TypeTimestamp:
		return "timestamptz"
	case TypeYear:
		return "int2"
	case TypeChar:
		return "text"
	case TypeBinary, TypeVarBinary, TypeBlob:
		return "bytea"
	case TypeBit:
		// PostgreSQL workaround: casting a bound parameter straight to
		// "bit" fails unless the literal width matches exactly, so the
		// query builder always qualifies via varbit instead.
		return "varbit"
	case TypeSet, TypeEnum:
		return "text"
	case TypeJSON:
		return "jsonb"
	case TypeBool:
		return "bool"
	default:
		return "text"
	}
}
