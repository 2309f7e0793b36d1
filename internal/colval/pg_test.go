package colval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTextBoolVariants(t *testing.T) {
	v, err := FromText(Type{Kind: TypeBool}, "t")
	require.NoError(t, err)
	assert.Equal(t, "1", v.String())

	v, err = FromText(Type{Kind: TypeBool}, "FALSE")
	require.NoError(t, err)
	assert.Equal(t, "0", v.String())
}

func TestFromTextBoolInvalid(t *testing.T) {
	_, err := FromText(Type{Kind: TypeBool}, "maybe")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFromTextIntegers(t *testing.T) {
	v, err := FromText(Type{Kind: TypeSmallInt}, "-32768")
	require.NoError(t, err)
	assert.Equal(t, "-32768", v.String())

	v, err = FromText(Type{Kind: TypeInt, Unsigned: true}, "4000000000")
	require.NoError(t, err)
	assert.Equal(t, KindUint32, v.Kind)
}

func TestFromTextBigIntUnsigned(t *testing.T) {
	v, err := FromText(Type{Kind: TypeBigInt, Unsigned: true}, "18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, KindUint64, v.Kind)
}

func TestFromTextBigIntInvalid(t *testing.T) {
	_, err := FromText(Type{Kind: TypeBigInt}, "nope")
	assert.Error(t, err)
}

func TestFromTextDecimalKeptVerbatim(t *testing.T) {
	v, err := FromText(Type{Kind: TypeDecimal}, "12.3400")
	require.NoError(t, err)
	assert.Equal(t, "12.3400", v.String())
}

func TestFromTextDateTimeKinds(t *testing.T) {
	v, err := FromText(Type{Kind: TypeDate}, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", v.String())

	v, err = FromText(Type{Kind: TypeTimestamp}, "2024-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 00:00:00", v.String())
}

func TestFromTextBinaryHexForm(t *testing.T) {
	v, err := FromText(Type{Kind: TypeBlob}, `\x48656c6c6f`)
	require.NoError(t, err)
	b, ok := v.Bytes()
	require.True(t, ok)
	assert.Equal(t, "Hello", string(b))
}

func TestFromTextBinaryPlainFallback(t *testing.T) {
	v, err := FromText(Type{Kind: TypeBlob}, "raw")
	require.NoError(t, err)
	b, ok := v.Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte("raw"), b)
}

func TestFromTextBitStringForm(t *testing.T) {
	v, err := FromText(Type{Kind: TypeBit}, "1011")
	require.NoError(t, err)
	assert.Equal(t, "11", v.String())
}

func TestFromTextBitDecimalFallback(t *testing.T) {
	v, err := FromText(Type{Kind: TypeBit}, "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "9999999999", v.String())
}

func TestFromTextEnumResolvesOrdinalFromLabelTable(t *testing.T) {
	ty := Type{Kind: TypeEnum, Labels: []string{"red", "green"}}
	v, err := FromText(ty, "green")
	require.NoError(t, err)
	assert.Equal(t, KindEnumRaw, v.Kind)
}

func TestFromTextEnumResolveLabelsKeepsText(t *testing.T) {
	ty := Type{Kind: TypeEnum, ResolveLabels: true, Labels: []string{"red", "green"}}
	v, err := FromText(ty, "green")
	require.NoError(t, err)
	assert.Equal(t, "green", v.String())
}

func TestFromTextSetKeepsLabelText(t *testing.T) {
	v, err := FromText(Type{Kind: TypeSet}, "a,c")
	require.NoError(t, err)
	assert.Equal(t, "a,c", v.String())
}

func TestFromTextJSONCanonicalizes(t *testing.T) {
	v, err := FromText(Type{Kind: TypeJSON}, `{"b":1,"a":2}`)
	require.NoError(t, err)
	assert.Equal(t, KindJSONText, v.Kind)
}

func TestFromTextUnsupportedKind(t *testing.T) {
	_, err := FromText(Type{Kind: TypeKind(255)}, "x")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
