package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, fn func()) string {
	origOut := os.Stdout
	defer func() { os.Stdout = origOut }()

	rOut, wOut, err := os.Pipe()
	require.NoError(t, err, "failed to create stdout pipe")

	os.Stdout = wOut

	fn()

	err = wOut.Close()
	require.NoError(t, err, "failed to close stdout pipe")

	outBytes, err := io.ReadAll(rOut)
	require.NoError(t, err, "failed to read stdout pipe")

	return string(outBytes)
}

func TestLogger_parseLevelString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"Debug level", "DEBUG", slog.LevelDebug},
		{"Debug level lowercase", "debug", slog.LevelDebug},
		{"Info level", "INFO", slog.LevelInfo},
		{"Warn level", "warn", slog.LevelWarn},
		{"Error level", "error", slog.LevelError},
		{"Unknown level falls back to info", "uknown", slog.LevelInfo},
		{"Empty level falls back to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevelString(tt.input)
			require.Equal(t, tt.expected, got, "parseLevelString(%q) should return %v", tt.input, tt.expected)
		})
	}
}

func TestLogger_New(t *testing.T) {
	t.Run("prod logs json", func(t *testing.T) {
		out := capture(t, func() {
			l, err := New(EnvProduction, LevelInfo)
			require.NoError(t, err)
			l.Info("hello", "key", "value")
		})

		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &record), "prod output should be json. Got: %s", out)
		require.Equal(t, "hello", record["msg"])
		require.Equal(t, "value", record["key"])
		require.Contains(t, record, "source", "source info should be attached")
	})

	t.Run("dev logs text", func(t *testing.T) {
		out := capture(t, func() {
			l, err := New(EnvDevelopment, LevelInfo)
			require.NoError(t, err)
			l.Info("hello", "key", "value")
		})

		require.Contains(t, out, "msg=hello")
		require.Contains(t, out, "key=value")
	})

	t.Run("unknown environment", func(t *testing.T) {
		_, err := New("staging", LevelInfo)
		require.Error(t, err)
	})

	t.Run("level filters lower records", func(t *testing.T) {
		out := capture(t, func() {
			l, err := New(EnvDevelopment, LevelError)
			require.NoError(t, err)
			l.Info("should be dropped")
			l.Error("should be logged")
		})

		require.NotContains(t, out, "should be dropped")
		require.Contains(t, out, "should be logged")
	})

	t.Run("with keeps attributes", func(t *testing.T) {
		out := capture(t, func() {
			l, err := New(EnvDevelopment, LevelInfo)
			require.NoError(t, err)
			l.With("request_id", "42").Info("hello")
		})

		require.Contains(t, out, "request_id=42")
	})

	t.Run("noop logger stays silent", func(t *testing.T) {
		out := capture(t, func() {
			NewNoOpLogger().Error("nothing to see")
		})

		require.Empty(t, out)
	})
}
