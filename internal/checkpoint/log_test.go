package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReadLastRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.log")

	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.WriteCurrent(model.NewRdbSnapshot("mysql", "app", "users", "id", "100")))
	require.NoError(t, w.WriteCheckpoint(model.NewRdbSnapshotFinished("mysql", "app", "users")))
	require.NoError(t, w.Close())

	lines, err := ReadLast(path, 30)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, LineCurrent, lines[0].Kind)
	assert.Equal(t, model.PositionRdbSnapshot, lines[0].Position.Type)
	assert.Equal(t, "100", lines[0].Position.Value)

	assert.Equal(t, LineCheckpoint, lines[1].Kind)
	assert.Equal(t, model.PositionRdbSnapshotFinished, lines[1].Position.Type)
}

func TestReadLastMissingFile(t *testing.T) {
	lines, err := ReadLast(filepath.Join(t.TempDir(), "does-not-exist.log"), 10)
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestReadLastTruncatesToN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.log")
	w, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteCurrent(model.NewRdbSnapshot("mysql", "app", "users", "id", "1")))
	}
	require.NoError(t, w.Close())

	lines, err := ReadLast(path, 2)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestReadLastSkipsUnparseableLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.log")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteCurrent(model.NewRdbSnapshot("mysql", "app", "users", "id", "1")))
	require.NoError(t, w.Close())

	f, err := Open(path)
	require.NoError(t, err)
	_, err = f.f.WriteString("not a valid line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lines, err := ReadLast(path, 30)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
