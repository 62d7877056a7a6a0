package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/allbin/go-serialhost/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LogConfig{Level: "info", Format: "json"}))

	log.Info("port opened", "handle", 0, "path", "/dev/ttyUSB0")
	log.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "port opened", entry["msg"])
	assert.Equal(t, "/dev/ttyUSB0", entry["path"])
	assert.EqualValues(t, 0, entry["handle"])
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestTextHandlerDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LogConfig{Level: "debug", Format: "text"}))

	log.Debug("unknown handle", "handle", 7)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "handle=7")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestOpenOutputStandardStreams(t *testing.T) {
	w, closer, err := openOutput("stdout")
	require.NoError(t, err)
	assert.Same(t, os.Stdout, w)
	require.NoError(t, closer())

	w, closer, err = openOutput("")
	require.NoError(t, err)
	assert.Same(t, os.Stderr, w)
	require.NoError(t, closer())
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serialhost.log")

	log, closer, err := New(config.LogConfig{Level: "info", Format: "text", Output: path})
	require.NoError(t, err)
	log.Info("port closed", "handle", 3)
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port closed")
	assert.Contains(t, string(data), "handle=3")
}

func TestNewBadOutput(t *testing.T) {
	_, _, err := New(config.LogConfig{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
