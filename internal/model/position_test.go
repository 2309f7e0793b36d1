package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoPositionIsNone(t *testing.T) {
	assert.True(t, NoPosition.IsNone())
	assert.False(t, NewMysqlCdc(1, "bin.000001", 100, 0).IsNone())
}

func TestPositionJSONRoundTripMysqlCdc(t *testing.T) {
	p := NewMysqlCdc(7, "bin.000042", 1024, 1700000000000)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got Position
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}

func TestPositionJSONRoundTripPgCdc(t *testing.T) {
	p := NewPgCdc("0/16B3748", 1700000000000)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got Position
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}

func TestPositionJSONRoundTripSnapshot(t *testing.T) {
	p := NewRdbSnapshot("mysql", "app", "users", "id", "100")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"RdbSnapshot"`)

	var got Position
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}

func TestPositionSnapshotFinished(t *testing.T) {
	p := NewRdbSnapshotFinished("postgres", "app", "orders")
	assert.Equal(t, PositionRdbSnapshotFinished, p.Type)
	assert.Equal(t, "orders", p.Table)
}
