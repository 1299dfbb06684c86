package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "")

	log.Info("unit exported", "unit", "movie", "published", 3)
	log.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "unit exported", entry["msg"])
	assert.Equal(t, "movie", entry["unit"])
	assert.EqualValues(t, 3, entry["published"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "text")
	log.Debug("fetching", "url", "http://example")
	assert.Contains(t, buf.String(), "msg=fetching")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
