package colval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeLabel(t *testing.T) {
	ty := Type{Labels: []string{"red", "green", "blue"}}

	label, ok := ty.Label(1)
	assert.True(t, ok)
	assert.Equal(t, "red", label)

	label, ok = ty.Label(3)
	assert.True(t, ok)
	assert.Equal(t, "blue", label)

	_, ok = ty.Label(0)
	assert.False(t, ok)

	_, ok = ty.Label(4)
	assert.False(t, ok)
}

func TestTypeSetLabels(t *testing.T) {
	ty := Type{Labels: []string{"a", "b", "c"}}

	assert.Equal(t, "a,c", ty.SetLabels(0b101))
	assert.Equal(t, "a,b,c", ty.SetLabels(0b111))
	assert.Equal(t, "", ty.SetLabels(0))
}
