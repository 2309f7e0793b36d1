package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractorErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ExtractorError{Schema: "app", Table: "users", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "app.users")

	got, ok := IsExtractorError(err)
	assert.True(t, ok)
	assert.Same(t, err, got)

	_, ok = IsExtractorError(cause)
	assert.False(t, ok)
}

func TestSinkerErrorWithoutTable(t *testing.T) {
	err := &SinkerError{Cause: errors.New("boom")}
	assert.Equal(t, "sinker: boom", err.Error())
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Section: "extractor", Key: "mode", Cause: errors.New("must be snapshot or cdc")}
	assert.Contains(t, err.Error(), "[extractor] mode")

	got, ok := IsConfigError(err)
	assert.True(t, ok)
	assert.Equal(t, "mode", got.Key)
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	inner := &SinkerError{Schema: "app", Table: "orders", Cause: errors.New("duplicate key")}
	wrapped := errors.Join(errors.New("batch apply failed"), inner)

	got, ok := IsSinkerError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "orders", got.Table)
}
