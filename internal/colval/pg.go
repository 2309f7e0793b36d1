package colval

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FromText decodes a PostgreSQL logical-replication tuple column that
// arrived in its text (not binary) form, per spec §4.1's from_text
// surface: numeric strings parse into their narrowest matching
// variant, date/time kinds pass through as strings, booleans
// recognise "t"/"f" case-insensitively, and bytea arrives in the
// "\x"-hex form.
func FromText(t Type, str string) (Value, error) {
	switch t.Kind {
	case TypeBool:
		switch strings.ToLower(str) {
		case "t", "true":
			return NewInt8(1), nil
		case "f", "false":
			return NewInt8(0), nil
		default:
			return Value{}, errors.Wrapf(ErrUnsupportedType, "boolean column holds %q", str)
		}

	case TypeTinyInt:
		v, err := strconv.ParseInt(str, 10, 8)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing tinyint text")
		}
		if t.Unsigned {
			return NewUint8(uint8(v)), nil
		}
		return NewInt8(int8(v)), nil

	case TypeSmallInt:
		v, err := strconv.ParseInt(str, 10, 16)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing smallint text")
		}
		if t.Unsigned {
			return NewUint16(uint16(v)), nil
		}
		return NewInt16(int16(v)), nil

	case TypeInt, TypeMediumInt:
		if t.Unsigned {
			v, err := strconv.ParseUint(str, 10, 32)
			if err != nil {
				return Value{}, errors.Wrap(err, "parsing int unsigned text")
			}
			return NewUint32(uint32(v)), nil
		}
		v, err := strconv.ParseInt(str, 10, 32)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing int text")
		}
		return NewInt32(int32(v)), nil

	case TypeBigInt:
		if t.Unsigned {
			v, err := strconv.ParseUint(str, 10, 64)
			if err != nil {
				return Value{}, errors.Wrap(err, "parsing bigint unsigned text")
			}
			return NewUint64(v), nil
		}
		v, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing bigint text")
		}
		return NewInt64(v), nil

	case TypeFloat:
		v, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing real text")
		}
		return NewFloat32(float32(v)), nil

	case TypeDouble:
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing double precision text")
		}
		return NewFloat64(v), nil

	case TypeDecimal:
		// Kept as the canonical decimal string verbatim: never parsed
		// into a binary float (spec §3).
		return NewDecimal(str), nil

	case TypeDate:
		return NewDate(str), nil
	case TypeTime:
		return NewTime(str), nil
	case TypeDateTime:
		return NewDateTime(str), nil
	case TypeTimestamp:
		return NewTimestamp(str), nil
	case TypeYear:
		v, err := strconv.ParseUint(str, 10, 16)
		if err != nil {
			return Value{}, errors.Wrap(err, "parsing year text")
		}
		return NewYear(uint16(v)), nil

	case TypeChar:
		return NewString(str), nil

	case TypeBinary, TypeVarBinary, TypeBlob:
		b, err := decodeHexBytes(str)
		if err != nil {
			return Value{}, err
		}
		return NewBlob(b), nil

	case TypeBit:
		v, err := strconv.ParseUint(str, 2, 64)
		if err != nil {
			// Some bit-varying values round-trip through decimal text
			// rather than a raw bit-string; fall back before failing.
			v2, err2 := strconv.ParseUint(str, 10, 64)
			if err2 != nil {
				return Value{}, errors.Wrap(err, "parsing bit text")
			}
			v = v2
		}
		return NewBit(v), nil

	case TypeEnum:
		if t.ResolveLabels {
			return NewEnumLabel(str), nil
		}
		for i, label := range t.Labels {
			if label == str {
				return NewEnumRaw(uint64(i + 1)), nil
			}
		}
		return NewEnumLabel(str), nil

	case TypeSet:
		return NewSetLabel(str), nil

	case TypeJSON:
		canonical, err := canonicalJSON([]byte(str))
		if err != nil {
			return Value{}, err
		}
		return NewJSONText(canonical), nil

	default:
		return Value{}, errors.Wrapf(ErrUnsupportedType, "column kind %v", t.Kind)
	}
}

// decodeHexBytes decodes PostgreSQL's "\x48656c6c6f" bytea text
// representation.
func decodeHexBytes(str string) ([]byte, error) {
	if !strings.HasPrefix(str, `\x`) {
		return []byte(str), nil
	}
	return hex.DecodeString(strings.TrimPrefix(str, `\x`))
}
