package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info().Str("ip", "10.0.0.1").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "10.0.0.1", entry["ip"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Warn().Msg("plain")

	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestSetupFileOutput(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	path := filepath.Join(t.TempDir(), "a2sprobe.log")
	w := Setup(Config{Level: "debug", Format: "json", Output: path})

	f, ok := w.(*os.File)
	require.True(t, ok)
	require.NoError(t, f.Close())

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSetupBadLevelDefaultsToInfo(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	Setup(Config{Level: "loud", Output: "stderr"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
