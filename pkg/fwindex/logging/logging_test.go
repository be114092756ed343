package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, logging.ErrInvalidLevel)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestInit_WritesToFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fwindex.log")
	var console bytes.Buffer

	logger := logging.Get("indexer-test")

	require.NoError(t, logging.Init(logging.Config{
		Level:        "debug",
		Path:         path,
		ConsoleLevel: "warn",
		Console:      &console,
	}))
	t.Cleanup(func() { _ = logging.Close() })

	// The pointer obtained before Init is rebuilt in place.
	logger.Info("hashed file", "path", "A/f.bin")
	logger.Warn("skipping unreadable file", "path", "A/secret.bin")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hashed file")
	assert.Contains(t, string(data), "skipping unreadable file")

	assert.NotContains(t, console.String(), "hashed file")
	assert.Contains(t, console.String(), "skipping unreadable file")
}

func TestInit_ComponentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "info",
		Path:       path,
		Components: map[string]string{"quiet-test": "error"},
	}))
	logging.Get("quiet-test").Warn("should not appear")
	logging.Get("loud-test").Warn("should appear")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestInit_InvalidComponentLevel(t *testing.T) {
	err := logging.Init(logging.Config{
		Path:       filepath.Join(t.TempDir(), "x.log"),
		Components: map[string]string{"indexer": "shout"},
	})
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)
}

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	w, err := logging.NewRotatingWriter(path, logging.RotationConfig{MaxSize: 16, MaxBackups: 1})
	require.NoError(t, err)

	_, err = w.Write([]byte(strings.Repeat("a", 12)))
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("b", 12)))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 12), string(current))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
