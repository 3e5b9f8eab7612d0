package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0"},
		{500 * time.Microsecond, "0"},
		{15 * time.Millisecond, "15ms"},
		{2*time.Second + 5*time.Millisecond, "2s 5ms"},
		{time.Hour + 3*time.Minute, "1h 3m"},
		{26*time.Hour + time.Second, "26h 1s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestNew_JSONWithServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Format: "json", Production: true}, &buf)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("visible", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "only the info line is written")
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "star-infinity", entry["service"])
	assert.Equal(t, "v", entry["k"])
}

func TestNew_TextToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer := New(Options{Format: "text", File: path}, &buf)

	logger.Debug("debug line")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "msg=\"debug line\"")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "service=star-infinity")
}

func TestStopwatch(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	sw := StartStopwatch("seed")
	sw.Checkpoint("admins")
	elapsed := sw.Stop()

	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	assert.Contains(t, buf.String(), `"operation":"seed"`)
	assert.Contains(t, buf.String(), `"checkpoint":"admins"`)
	assert.Contains(t, buf.String(), `"msg":"operation completed"`)
}
