// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package colval implements the cross-dialect ColumnValue tagged
// union (spec §3, §4.1): decoding from a MySQL binlog row, a
// PostgreSQL WAL text tuple, or a plain driver row, and rendering SQL
// placeholders for the query builder.
package colval

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags the variant held by a Value.
type Kind int

// Supported ColumnValue variants, matching spec §3's table.
const (
	KindNone Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindDecimal
	KindDate
	KindTime
	KindDateTime
	KindTimestamp
	KindYear
	KindString
	KindBlob
	KindBit
	KindSetRaw
	KindSetLabel
	KindEnumRaw
	KindEnumLabel
	KindJSONRaw
	KindJSONText
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindInt8:
		return "Int8"
	case KindUint8:
		return "Uint8"
	case KindInt16:
		return "Int16"
	case KindUint16:
		return "Uint16"
	case KindInt32:
		return "Int32"
	case KindUint32:
		return "Uint32"
	case KindInt64:
		return "Int64"
	case KindUint64:
		return "Uint64"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindDecimal:
		return "Decimal"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	case KindDateTime:
		return "DateTime"
	case KindTimestamp:
		return "Timestamp"
	case KindYear:
		return "Year"
	case KindString:
		return "String"
	case KindBlob:
		return "Blob"
	case KindBit:
		return "Bit"
	case KindSetRaw:
		return "SetRaw"
	case KindSetLabel:
		return "SetLabel"
	case KindEnumRaw:
		return "EnumRaw"
	case KindEnumLabel:
		return "EnumLabel"
	case KindJSONRaw:
		return "JSONRaw"
	case KindJSONText:
		return "JSONText"
	default:
		return "Unknown"
	}
}

// Value is the tagged-union ColumnValue described in spec §3. Only the
// field matching Kind is meaningful; zero values of the others are
// ignored. None is distinct from an empty string or zero-length blob:
// it represents SQL NULL.
type Value struct {
	Kind Kind

	i   int64
	u   uint64
	f32 float32
	f64 float64
	s   string
	b   []byte
}

// None is the canonical NULL value.
var None = Value{Kind: KindNone}

// IsNone reports whether v represents SQL NULL.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// Constructors, one per variant. These are the only way to build a
// non-None Value so that Kind and payload never disagree.

func NewInt8(v int8) Value     { return Value{Kind: KindInt8, i: int64(v)} }
func NewUint8(v uint8) Value   { return Value{Kind: KindUint8, u: uint64(v)} }
func NewInt16(v int16) Value   { return Value{Kind: KindInt16, i: int64(v)} }
func NewUint16(v uint16) Value { return Value{Kind: KindUint16, u: uint64(v)} }
func NewInt32(v int32) Value   { return Value{Kind: KindInt32, i: int64(v)} }
func NewUint32(v uint32) Value { return Value{Kind: KindUint32, u: uint64(v)} }
func NewInt64(v int64) Value   { return Value{Kind: KindInt64, i: v} }
func NewUint64(v uint64) Value { return Value{Kind: KindUint64, u: v} }
func NewFloat32(v float32) Value { return Value{Kind: KindFloat32, f32: v} }
func NewFloat64(v float64) Value { return Value{Kind: KindFloat64, f64: v} }

// NewDecimal stores the canonical decimal string verbatim: it must
// never be routed through a binary float, per spec §3.
func NewDecimal(s string) Value { return Value{Kind: KindDecimal, s: s} }

func NewDate(s string) Value      { return Value{Kind: KindDate, s: s} }
func NewTime(s string) Value      { return Value{Kind: KindTime, s: s} }
func NewDateTime(s string) Value  { return Value{Kind: KindDateTime, s: s} }
func NewTimestamp(s string) Value { return Value{Kind: KindTimestamp, s: s} }
func NewYear(v uint16) Value      { return Value{Kind: KindYear, u: uint64(v)} }
func NewString(s string) Value    { return Value{Kind: KindString, s: s} }
func NewBlob(b []byte) Value      { return Value{Kind: KindBlob, b: b} }
func NewBit(v uint64) Value       { return Value{Kind: KindBit, u: v} }
func NewSetRaw(v uint64) Value    { return Value{Kind: KindSetRaw, u: v} }
func NewSetLabel(s string) Value  { return Value{Kind: KindSetLabel, s: s} }
func NewEnumRaw(v uint64) Value   { return Value{Kind: KindEnumRaw, u: v} }
func NewEnumLabel(s string) Value { return Value{Kind: KindEnumLabel, s: s} }
func NewJSONRaw(b []byte) Value   { return Value{Kind: KindJSONRaw, b: b} }
func NewJSONText(s string) Value  { return Value{Kind: KindJSONText, s: s} }

// Int64 returns the value widened to int64, for any signed or
// unsigned integer Kind. The second return is false for any other
// Kind.
func (v Value) Int64() (int64, bool) {
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.i, true
	case KindUint8, KindUint16, KindUint32, KindUint64, KindBit, KindYear, KindSetRaw, KindEnumRaw:
		return int64(v.u), true
	default:
		return 0, false
	}
}

// Uint64 returns the value widened to uint64, for any integer Kind.
func (v Value) Uint64() (uint64, bool) {
	switch v.Kind {
	case KindUint8, KindUint16, KindUint32, KindUint64, KindBit, KindYear, KindSetRaw, KindEnumRaw:
		return v.u, true
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return uint64(v.i), true
	default:
		return 0, false
	}
}

// Float64 returns a Float32 or Float64 widened to float64.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case KindFloat32:
		return float64(v.f32), true
	case KindFloat64:
		return v.f64, true
	default:
		return 0, false
	}
}

// String returns the textual payload for String/Decimal/date-time/
// label-resolved enum-or-set/JSONText Kinds.
func (v Value) String() string {
	switch v.Kind {
	case KindString, KindDecimal, KindDate, KindTime, KindDateTime, KindTimestamp,
		KindSetLabel, KindEnumLabel, KindJSONText:
		return v.s
	case KindNone:
		return ""
	default:
		return fmt.Sprintf("%v", v.Any())
	}
}

// Bytes returns the raw payload for Blob/JSONRaw Kinds.
func (v Value) Bytes() ([]byte, bool) {
	switch v.Kind {
	case KindBlob, KindJSONRaw:
		return v.b, true
	default:
		return nil, false
	}
}

// Any returns the value boxed as interface{}, useful for driver binds
// that don't go through to_placeholder's typed path (e.g. test
// fixtures).
func (v Value) Any() any {
	switch v.Kind {
	case KindNone:
		return nil
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.i
	case KindUint8, KindUint16, KindUint32, KindUint64, KindBit, KindYear, KindSetRaw, KindEnumRaw:
		return v.u
	case KindFloat32:
		return v.f32
	case KindFloat64:
		return v.f64
	case KindString, KindDecimal, KindDate, KindTime, KindDateTime, KindTimestamp,
		KindSetLabel, KindEnumLabel, KindJSONText:
		return v.s
	case KindBlob, KindJSONRaw:
		return v.b
	default:
		return nil
	}
}

// Equal implements the equivalence relation referenced by spec §8's
// round-trip laws: same Kind, same payload.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNone:
		return true
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.i == other.i
	case KindUint8, KindUint16, KindUint32, KindUint64, KindBit, KindYear, KindSetRaw, KindEnumRaw:
		return v.u == other.u
	case KindFloat32:
		return v.f32 == other.f32
	case KindFloat64:
		return v.f64 == other.f64
	case KindString, KindDecimal, KindDate, KindTime, KindDateTime, KindTimestamp,
		KindSetLabel, KindEnumLabel, KindJSONText:
		return v.s == other.s
	case KindBlob, KindJSONRaw:
		return bytes.Equal(v.b, other.b)
	default:
		return false
	}
}

// ErrUnsupportedType is returned by the conversion surfaces for a
// column type they cannot decode, per spec §7's error taxonomy.
var ErrUnsupportedType = errors.New("unsupported column type")
