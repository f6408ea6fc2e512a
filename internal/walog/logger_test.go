package walog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Debugf("debug message")
	logger.Infof("info message")
	assert.Empty(t, buf.String())

	logger.Warnf("warn message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestLogger_DefaultLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "nonsense")

	logger.Debugf("hidden")
	logger.Infof("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestLogger_NoColorForNonTTYWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug")
	logger.Errorf("boom %d", 42)

	out := buf.String()
	assert.True(t, strings.Contains(out, "[ERROR] boom 42"))
	assert.NotContains(t, out, "\x1b[") // no ANSI escape codes
}

func TestLogger_NilWriterDiscardsSafely(t *testing.T) {
	logger := New(nil, "debug")
	assert.NotPanics(t, func() {
		logger.Infof("discarded")
	})
}
