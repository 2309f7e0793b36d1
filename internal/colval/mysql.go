package colval

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// FromBinlog decodes a single column value already materialized by
// the go-mysql-org/go-mysql replication decoder (raw is whatever Go
// type that library produced for the column: an int64/uint64 family
// member for integers, string/[]byte for text/binary, float32/float64,
// or a decimal string) into the column's ColumnValue, applying the
// dialect-specific reinterpretations spec §4.1 requires on top of the
// driver's own decode.
func FromBinlog(t Type, raw any) (Value, error) {
	if raw == nil {
		return None, nil
	}

	switch t.Kind {
	case TypeTinyInt:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Unsigned {
			return NewUint8(uint8(v)), nil
		}
		return NewInt8(int8(v)), nil

	case TypeSmallInt:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Unsigned {
			return NewUint16(uint16(v)), nil
		}
		return NewInt16(int16(v)), nil

	case TypeMediumInt:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		// MEDIUMINT is a 24-bit value; the underlying widened
		// representation from the binlog client must be masked before
		// further widening (spec §4.1, source-observed behaviour).
		masked := v & 0xFFFFFF
		if t.Unsigned {
			return NewUint32(uint32(masked)), nil
		}
		if masked&0x800000 != 0 {
			masked |= ^int64(0xFFFFFF)
		}
		return NewInt32(int32(masked)), nil

	case TypeInt:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Unsigned {
			return NewUint32(uint32(v)), nil
		}
		return NewInt32(int32(v)), nil

	case TypeBigInt:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Unsigned {
			return NewUint64(uint64(v)), nil
		}
		return NewInt64(v), nil

	case TypeFloat:
		switch n := raw.(type) {
		case float32:
			return NewFloat32(n), nil
		case float64:
			return NewFloat32(float32(n)), nil
		default:
			return Value{}, errors.Wrapf(ErrUnsupportedType, "float column holds %T", raw)
		}

	case TypeDouble:
		v, err := toFloat64(raw)
		if err != nil {
			return Value{}, err
		}
		return NewFloat64(v), nil

	case TypeDecimal:
		s, ok := raw.(string)
		if !ok {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "decimal column holds %T", raw)
		}
		return NewDecimal(s), nil

	case TypeDate:
		s, ok := asString(raw)
		if !ok {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "date column holds %T", raw)
		}
		return NewDate(s), nil

	case TypeTime:
		s, ok := asString(raw)
		if !ok {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "time column holds %T", raw)
		}
		return NewTime(s), nil

	case TypeDateTime:
		s, ok := asString(raw)
		if !ok {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "datetime column holds %T", raw)
		}
		return NewDateTime(s), nil

	case TypeTimestamp:
		return decodeTimestamp(t, raw)

	case TypeYear:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		return NewYear(uint16(v)), nil

	case TypeBinary:
		b, err := toBytes(raw)
		if err != nil {
			return Value{}, err
		}
		if t.Length > len(b) {
			padded := make([]byte, t.Length)
			copy(padded, b)
			return NewBlob(padded), nil
		}
		return NewBlob(b), nil

	case TypeVarBinary, TypeBlob:
		b, err := toBytes(raw)
		if err != nil {
			return Value{}, err
		}
		return NewBlob(b), nil

	case TypeChar:
		b, err := toBytes(raw)
		if err != nil {
			return Value{}, err
		}
		if utf8.Valid(b) {
			return NewString(string(b)), nil
		}
		return NewBlob(b), nil

	case TypeBit:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		return NewBit(uint64(v)), nil

	case TypeSet:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		if t.ResolveLabels {
			return NewSetLabel(t.SetLabels(uint64(v))), nil
		}
		return NewSetRaw(uint64(v)), nil

	case TypeEnum:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		if t.ResolveLabels {
			label, ok := t.Label(uint64(v))
			if !ok {
				return NewEnumLabel(""), nil
			}
			return NewEnumLabel(label), nil
		}
		return NewEnumRaw(uint64(v)), nil

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

	case TypeBool:
		v, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		return NewInt8(int8(v)), nil

	default:
		return Value{}, errors.Wrapf(ErrUnsupportedType, "column kind %v", t.Kind)
	}
}

// decodeTimestamp renders the decoded instant (microseconds since the
// UNIX epoch, UTC, as delivered by the binlog client) into
// "YYYY-MM-DD hh:mm:ss[.ffffff]" shifted into the column's configured
// timezone offset, per spec §4.1.
func decodeTimestamp(t Type, raw any) (Value, error) {
	var micros int64
	switch n := raw.(type) {
	case time.Time:
		micros = n.UnixMicro()
	case int64:
		micros = n
	case uint64:
		micros = int64(n)
	case string:
		parsed, err := time.Parse("2006-01-02 15:04:05.999999", n)
		if err != nil {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "timestamp column holds unparseable string %q", n)
		}
		micros = parsed.UTC().UnixMicro()
	default:
		return Value{}, errors.Wrapf(ErrUnsupportedType, "timestamp column holds %T", raw)
	}

	instant := time.UnixMicro(micros).UTC().Add(time.Duration(t.TimezoneOffsetSeconds) * time.Second)
	layout := "2006-01-02 15:04:05"
	if instant.Nanosecond() != 0 {
		layout = "2006-01-02 15:04:05.000000"
	}
	return NewTimestamp(instant.Format(layout)), nil
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint:
		return int64(n), nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedType, "expected integer, got %T", raw)
	}
}

func toFloat64(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedType, "expected float, got %T", raw)
	}
}

func toBytes(raw any) ([]byte, error) {
	switch n := raw.(type) {
	case []byte:
		return n, nil
	case string:
		return []byte(n), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "expected bytes, got %T", raw)
	}
}

func asString(raw any) (string, bool) {
	switch n := raw.(type) {
	case string:
		return n, true
	case []byte:
		return string(n), true
	case fmt.Stringer:
		return n.String(), true
	default:
		return "", false
	}
}

// canonicalJSON re-marshals raw binary/textual JSON into a stable
// textual form, matching spec §4.1's "parse binary JSON to canonical
// text" requirement.
func canonicalJSON(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", errors.Wrap(err, "decoding json column")
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "re-encoding json column")
	}
	return string(out), nil
}
