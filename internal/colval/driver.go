package colval

import (
	"time"

	"github.com/pkg/errors"
)

// FromDriverRow decodes a value already scanned out of a query result
// row (snapshot extraction, §4.4.1/§4.4.3) into a ColumnValue. Binary
// datatypes decode as Blob, textual datatypes as String, and every
// date/time kind renders as its ISO string regardless of what wire
// representation the driver produced, per spec §4.1.
func FromDriverRow(t Type, raw any) (Value, error) {
	if raw == nil {
		return None, nil
	}

	switch t.Kind {
	case TypeBinary, TypeVarBinary, TypeBlob:
		b, err := toBytes(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Kind == TypeBinary && t.Length > len(b) {
			padded := make([]byte, t.Length)
			copy(padded, b)
			b = padded
		}
		return NewBlob(b), nil

	case TypeChar:
		s, ok := asString(raw)
		if !ok {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "char column holds %T", raw)
		}
		return NewString(s), nil

	case TypeDate, TypeTime, TypeDateTime, TypeTimestamp:
		return decodeDriverTime(t, raw)

	case TypeDecimal:
		s, ok := asString(raw)
		if !ok {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "decimal column holds %T", raw)
		}
		return NewDecimal(s), nil

	case TypeJSON:
		b, err := toBytes(raw)
		if err != nil {
			return Value{}, err
		}
		canonical, err := canonicalJSON(b)
		if err != nil {
			return Value{}, err
		}
		return NewJSONText(canonical), nil

	default:
		// Integers, floats, bit, set/enum, bool, year: same decode as
		// the binlog surface once a driver value is in hand.
		return FromBinlog(t, raw)
	}
}

func decodeDriverTime(t Type, raw any) (Value, error) {
	var s string
	switch n := raw.(type) {
	case time.Time:
		switch t.Kind {
		case TypeDate:
			s = n.Format("2006-01-02")
		case TypeTime:
			s = n.Format("15:04:05.000000")
		default:
			instant := n.Add(time.Duration(t.TimezoneOffsetSeconds) * time.Second)
			s = instant.Format("2006-01-02 15:04:05.000000")
		}
	case string:
		s = n
	case []byte:
		s = string(n)
	default:
		return Value{}, errors.Wrapf(ErrUnsupportedType, "time-family column holds %T", raw)
	}

	switch t.Kind {
	case TypeDate:
		return NewDate(s), nil
	case TypeTime:
		return NewTime(s), nil
	case TypeDateTime:
		return NewDateTime(s), nil
	default:
		return NewTimestamp(s), nil
	}
}
