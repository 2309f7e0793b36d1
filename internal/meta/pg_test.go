package meta

import (
	"testing"

	"github.com/cockroachdb/rdb-replicate/internal/colval"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestPgColumnTypeNumeric(t *testing.T) {
	ty := pgColumnType("numeric", 0, nil, intPtr(12), intPtr(4))
	assert.Equal(t, colval.TypeDecimal, ty.Kind)
	assert.Equal(t, 12, ty.Precision)
	assert.Equal(t, 4, ty.Scale)
}

func TestPgColumnTypeVarcharLength(t *testing.T) {
	ty := pgColumnType("varchar", 0, intPtr(128), nil, nil)
	assert.Equal(t, colval.TypeChar, ty.Kind)
	assert.Equal(t, 128, ty.Length)
}

func TestPgColumnTypeTimestampTz(t *testing.T) {
	ty := pgColumnType("timestamptz", 0, nil, nil, nil)
	assert.Equal(t, colval.TypeTimestamp, ty.Kind)
}

func TestPgColumnTypeTimestampWithoutTz(t *testing.T) {
	ty := pgColumnType("timestamp", 0, nil, nil, nil)
	assert.Equal(t, colval.TypeDateTime, ty.Kind)
}

func TestPgColumnTypeVarbitUsesTypmodAsLength(t *testing.T) {
	ty := pgColumnType("varbit", 10, nil, nil, nil)
	assert.Equal(t, colval.TypeBit, ty.Kind)
	assert.Equal(t, 10, ty.Length)
}

func TestPgColumnTypeUnknownFallsBackToChar(t *testing.T) {
	ty := pgColumnType("point", 0, nil, nil, nil)
	assert.Equal(t, colval.TypeChar, ty.Kind)
}

func TestPgColumnTypeJSONB(t *testing.T) {
	ty := pgColumnType("jsonb", 0, nil, nil, nil)
	assert.Equal(t, colval.TypeJSON, ty.Kind)
}
