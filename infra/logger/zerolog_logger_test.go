package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("dispatch", &buf)
	l.Infof("assigned driver %d", 7)
	out := buf.String()
	assert.True(t, strings.Contains(out, `"component":"dispatch"`), "missing component field: %s", out)
	assert.True(t, strings.Contains(out, "assigned driver 7"), "missing message: %s", out)
}

func TestZerologLoggerLevelFilter(t *testing.T) {
	t.Setenv("APP_LOG_LEVEL", "warn")
	var buf bytes.Buffer
	l := NewWithWriter("test", &buf)
	l.Infof("hidden")
	l.Warnf("visible")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"), "info should be filtered: %s", out)
	assert.True(t, strings.Contains(out, "visible"), "warn should pass: %s", out)
}
