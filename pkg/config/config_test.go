package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/geoarray/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "planar", c.Kernel)
	assert.Equal(t, 5*time.Second, c.Script.Timeout)
	assert.Equal(t, 1024, c.Dispatch.MinPartition)
	assert.Empty(t, c.Store.Path)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
kernel: sdfx
log:
  level: debug
  development: true
dispatch:
  workers: 8
script:
  timeout: 250ms
sdfx:
  cells: 32
`))
	require.NoError(t, err)
	assert.Equal(t, "sdfx", c.Kernel)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.Development)
	assert.Equal(t, 8, c.Dispatch.Workers)
	assert.Equal(t, 1024, c.Dispatch.MinPartition, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, c.Script.Timeout)
	assert.Equal(t, 32, c.BackendOptions().SdfxCells)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown kernel", "kernel: cgal"},
		{"bad level", "log: {level: loud}"},
		{"negative workers", "dispatch: {workers: -1}"},
		{"zero partition", "dispatch: {min_partition: 0}"},
		{"zero timeout", "script: {timeout: 0s}"},
		{"tiny grid", "sdfx: {cells: 2}"},
		{"not yaml", "kernel: [planar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geoarray.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: /tmp/ds\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ds", c.Store.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	c.Kernel = "sdfx"
	data, err := c.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestLogger(t *testing.T) {
	l, err := LogConfig{Level: "warn"}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = LogConfig{Level: "nope"}.Logger()
	assert.Error(t, err)
}
