package colval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDriverRowNil(t *testing.T) {
	v, err := FromDriverRow(Type{Kind: TypeChar}, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestFromDriverRowChar(t *testing.T) {
	v, err := FromDriverRow(Type{Kind: TypeChar}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.String())
}

func TestFromDriverRowBlobPadsFixedBinary(t *testing.T) {
	v, err := FromDriverRow(Type{Kind: TypeBinary, Length: 5}, []byte("ab"))
	require.NoError(t, err)
	b, ok := v.Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0}, b)
}

func TestFromDriverRowDecimal(t *testing.T) {
	v, err := FromDriverRow(Type{Kind: TypeDecimal}, "12.50")
	require.NoError(t, err)
	assert.Equal(t, KindDecimal, v.Kind)
	assert.Equal(t, "12.50", v.String())
}

func TestFromDriverRowDate(t *testing.T) {
	ts := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	v, err := FromDriverRow(Type{Kind: TypeDate}, ts)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", v.String())
}

func TestFromDriverRowTimestampAppliesOffset(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	v, err := FromDriverRow(Type{Kind: TypeTimestamp, TimezoneOffsetSeconds: 3600}, ts)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15 13:00:00.000000", v.String())
}

func TestFromDriverRowUnsupportedCharType(t *testing.T) {
	_, err := FromDriverRow(Type{Kind: TypeChar}, 123)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
