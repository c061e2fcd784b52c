package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerWritesComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "dispatch")
	l.Infof("assigned %s", "job-1")
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"component":"dispatch"`)
	assert.Contains(t, out, "assigned job-1")
}

func TestZerologLoggerLevelFromEnv(t *testing.T) {
	t.Setenv("FS_LOG_LEVEL", "warn")
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "test")
	l.Infof("hidden")
	l.Warnf("visible")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestZerologLoggerConsoleInDev(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, "test")
	l.Debugw("fields", map[string]any{"k": 1})
	l.Errorf("boom")
	assert.True(t, strings.Contains(buf.String(), "boom"))
}
