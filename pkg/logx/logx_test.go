package logx

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "INFO", Level(42).String())
}

func TestLoggerFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test")
	l.logger = log.New(&buf, "", 0)

	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	l.Debug("hidden %d", 1)
	l.Info("hidden too")
	l.Warn("shown %s", "warning")
	l.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[test] WARN: shown warning")
	assert.Contains(t, out, "[test] ERROR: shown error")
}
