package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "fxvm", Env: "test", Level: "debug"})
	logger.Debug("mined", "user_id", 42)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "mined", line["message"])
	require.Equal(t, "fxvm", line["service"])
	require.Equal(t, "test", line["env"])
	require.EqualValues(t, 42, line["user_id"])
	require.Contains(t, line, "timestamp")
}

func TestStdLogIsBridged(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	New(&buf, Options{Service: "fxvm"})
	log.Printf("legacy %d", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "legacy 7", line["message"])
	require.Equal(t, "INFO", line["severity"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}
