package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel("INFO")
	SetFormat("text")
	t.Cleanup(func() {
		SetLevel("INFO")
		SetFormat("text")
		_ = SetOutput("stdout")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := resetLogger(t)

	SetLevel("warn")
	Info("hidden %d", 1)
	Warn("shown %d", 2)
	Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestUnknownLevelKeepsCurrent(t *testing.T) {
	buf := resetLogger(t)

	SetLevel("DEBUG")
	SetLevel("verbose")
	Debug("still debugging")

	assert.Contains(t, buf.String(), "[DEBUG] still debugging")
}

func TestJSONFormat(t *testing.T) {
	buf := resetLogger(t)

	SetFormat("json")
	Info("connection %s accepted", "abc")

	var line map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "connection abc accepted", line["msg"])
	assert.NotEmpty(t, line["time"])
}

func TestSetOutputFile(t *testing.T) {
	resetLogger(t)

	path := filepath.Join(t.TempDir(), "dittorpc.log")
	require.NoError(t, SetOutput(path))

	Info("written to file")
	require.NoError(t, SetOutput("stdout"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}

func TestSetOutputInvalidPath(t *testing.T) {
	resetLogger(t)

	err := SetOutput(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}

func TestJSONFormatLevels(t *testing.T) {
	buf := resetLogger(t)

	SetFormat("json")
	SetLevel("WARN")
	Info("filtered")
	Warn("slow accept")
	Error("listener failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	levels := make([]string, 0, len(lines))
	for _, l := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &entry))
		levels = append(levels, entry["level"].(string))
	}
	assert.Equal(t, []string{"WARN", "ERROR"}, levels)
}
