package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "production")

	l.Debug("hidden")
	l.Info("report built", "job_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is filtered in production")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "report built", entry["msg"])
	assert.Equal(t, "abc", entry["job_id"])
	assert.NotContains(t, entry, "source")
	assert.True(t, strings.HasSuffix(entry["time"].(string), "Z"))
}

func TestNewDevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "development")

	l.Debug("cache miss", "kind", "supplier")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "kind=supplier")
	assert.Contains(t, out, "source=")
}
