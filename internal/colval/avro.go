package colval

import (
	"github.com/hamba/avro/v2"
	"github.com/pkg/errors"
)

// wireValue is the Avro-serializable projection of a Value: every
// Kind is transported through exactly one of these scalar slots, plus
// a null flag, so a single fixed schema covers the whole ColumnValue
// union without needing a union-of-N-types schema per table.
type wireValue struct {
	Kind  int32  `avro:"kind"`
	Null  bool   `avro:"null"`
	I     int64  `avro:"i"`
	U     uint64 `avro:"u"`
	F32   string `avro:"f32"` // carried as text to avoid float round-trip drift
	F64   string `avro:"f64"`
	S     string `avro:"s"`
	B     []byte `avro:"b"`
}

var wireValueSchema = avro.MustParse(`{
	"type": "record",
	"name": "ColumnValue",
	"namespace": "rdbreplicate",
	"fields": [
		{"name": "kind", "type": "int"},
		{"name": "null", "type": "boolean"},
		{"name": "i", "type": "long"},
		{"name": "u", "type": "long"},
		{"name": "f32", "type": "string"},
		{"name": "f64", "type": "string"},
		{"name": "s", "type": "string"},
		{"name": "b", "type": "bytes"}
	]
}`)

// AvroEncode renders v into its Avro binary form, used by the Kafka
// sinker's row envelope (§4.6) and exercised by the §8 round-trip
// property avro_encode ∘ avro_decode == id.
func AvroEncode(v Value) ([]byte, error) {
	w := wireValue{Kind: int32(v.Kind), Null: v.IsNone()}
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		w.I = v.i
	case KindUint8, KindUint16, KindUint32, KindUint64, KindBit, KindYear, KindSetRaw, KindEnumRaw:
		w.U = v.u
	case KindFloat32:
		w.F32 = formatFloat32(v.f32)
	case KindFloat64:
		w.F64 = formatFloat64(v.f64)
	case KindString, KindDecimal, KindDate, KindTime, KindDateTime, KindTimestamp,
		KindSetLabel, KindEnumLabel, KindJSONText:
		w.S = v.s
	case KindBlob, KindJSONRaw:
		w.B = append([]byte(nil), v.b...)
	}
	out, err := avro.Marshal(wireValueSchema, &w)
	if err != nil {
		return nil, errors.Wrap(err, "avro-encoding column value")
	}
	return out, nil
}

// AvroDecode is the inverse of AvroEncode.
func AvroDecode(data []byte) (Value, error) {
	var w wireValue
	if err := avro.Unmarshal(wireValueSchema, data, &w); err != nil {
		return Value{}, errors.Wrap(err, "avro-decoding column value")
	}
	kind := Kind(w.Kind)
	if w.Null {
		return None, nil
	}
	switch kind {
	case KindInt8:
		return NewInt8(int8(w.I)), nil
	case KindInt16:
		return NewInt16(int16(w.I)), nil
	case KindInt32:
		return NewInt32(int32(w.I)), nil
	case KindInt64:
		return NewInt64(w.I), nil
	case KindUint8:
		return NewUint8(uint8(w.U)), nil
	case KindUint16:
		return NewUint16(uint16(w.U)), nil
	case KindUint32:
		return NewUint32(uint32(w.U)), nil
	case KindUint64:
		return NewUint64(w.U), nil
	case KindBit:
		return NewBit(w.U), nil
	case KindYear:
		return NewYear(uint16(w.U)), nil
	case KindSetRaw:
		return NewSetRaw(w.U), nil
	case KindEnumRaw:
		return NewEnumRaw(w.U), nil
	case KindFloat32:
		f, err := parseFloat32(w.F32)
		if err != nil {
			return Value{}, err
		}
		return NewFloat32(f), nil
	case KindFloat64:
		f, err := parseFloat64(w.F64)
		if err != nil {
			return Value{}, err
		}
		return NewFloat64(f), nil
	case KindString:
		return NewString(w.S), nil
	case KindDecimal:
		return NewDecimal(w.S), nil
	case KindDate:
		return NewDate(w.S), nil
	case KindTime:
		return NewTime(w.S), nil
	case KindDateTime:
		return NewDateTime(w.S), nil
	case KindTimestamp:
		return NewTimestamp(w.S), nil
	case KindSetLabel:
		return NewSetLabel(w.S), nil
	case KindEnumLabel:
		return NewEnumLabel(w.S), nil
	case KindJSONText:
		return NewJSONText(w.S), nil
	case KindBlob:
		return NewBlob(w.B), nil
	case KindJSONRaw:
		return NewJSONRaw(w.B), nil
	default:
		return None, nil
	}
}
