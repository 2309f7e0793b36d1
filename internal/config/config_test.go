package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/rdb-replicate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTaskINI = `
[extractor]
db_type = mysql
mode = cdc
url = mysql://root:pw@127.0.0.1:3306/app
server_id = 1001

[sinker]
sink_type = postgres
url = postgres://root:pw@127.0.0.1:5432/app

[filter]
do_tbs = app.users,app.orders

[pipeline]
buffer_size = 4096
parallel_size = 4
`

func writeTaskFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidTask(t *testing.T) {
	task, err := Load(writeTaskFile(t, validTaskINI))
	require.NoError(t, err)

	assert.Equal(t, "mysql", task.Extractor.DBType)
	assert.Equal(t, "cdc", task.Extractor.Mode)
	assert.Equal(t, uint32(1001), task.Extractor.ServerID)
	assert.Equal(t, "postgres", task.Sinker.SinkType)
	assert.Equal(t, 4, task.Pipeline.ParallelSize)
}

func TestLoadRejectsBadDBType(t *testing.T) {
	body := `
[extractor]
db_type = oracle
mode = cdc
[sinker]
sink_type = postgres
`
	_, err := Load(writeTaskFile(t, body))
	require.Error(t, err)

	cfgErr, ok := types.IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, "db_type", cfgErr.Key)
}

func TestLoadRejectsBadMode(t *testing.T) {
	body := `
[extractor]
db_type = mysql
mode = full
[sinker]
sink_type = mysql
`
	_, err := Load(writeTaskFile(t, body))
	require.Error(t, err)

	cfgErr, ok := types.IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, "mode", cfgErr.Key)
}

func TestLoadRejectsBadSinkType(t *testing.T) {
	body := `
[extractor]
db_type = mysql
mode = cdc
[sinker]
sink_type = redis
`
	_, err := Load(writeTaskFile(t, body))
	require.Error(t, err)

	cfgErr, ok := types.IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, "sink_type", cfgErr.Key)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestFilterAndResumerAdapters(t *testing.T) {
	task, err := Load(writeTaskFile(t, validTaskINI))
	require.NoError(t, err)

	fc := task.Filter.ToFilterConfig()
	assert.Equal(t, "app.users,app.orders", fc.DoTbs)

	rc := task.Resumer.ToResumerConfig()
	assert.False(t, rc.ResumeFromLog)
}
