package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"", INFO},
		{"verbose", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}

func TestJSONOutputAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithSink(INFO, zapcore.AddSync(&buf))
	require.NoError(t, err)

	l.Debug("hidden %d", 1)
	l.With(zap.String("component", "outbox")).Info("sent %d messages", 3)
	l.Sync()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "sent 3 messages", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "outbox", entry["component"])
}

func TestFileRotation(t *testing.T) {
	_, err := NewWithLumberjackConfig(INFO, LumberjackConfig{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewWithFileRotation(WARN, path)
	require.NoError(t, err)
	l.Info("skipped")
	l.Warn("disk almost full")
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk almost full")
	assert.NotContains(t, string(data), "skipped")
}

type staticConfig struct{ level, output, file string }

func (s staticConfig) GetLevel() string  { return s.level }
func (s staticConfig) GetOutput() string { return s.output }
func (s staticConfig) GetFile() string   { return s.file }

func TestInitReplacesDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefaultLogger(prev) })

	path := filepath.Join(t.TempDir(), "init.log")
	require.NoError(t, Init(staticConfig{level: "error", output: "file", file: path}))
	assert.NotSame(t, prev, Default())

	Error("boom %s", "now")
	Sync()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "boom now")
}
