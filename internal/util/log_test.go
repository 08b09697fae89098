package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelWarn, &buf)
	logger.Tracef("hidden trace")
	logger.Infof("hidden info")
	logger.Warnf("visible warn")
	logger.Errorf("visible error")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected messages below warn to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible warn") || !strings.Contains(out, "visible error") {
		t.Fatalf("expected warn and error output, got %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := ParseLogLevel("TRACE"); got != LevelTrace {
		t.Fatalf("expected trace, got %v", got)
	}
	if got := ParseLogLevel("bogus"); got != LevelInfo {
		t.Fatalf("expected default info for unknown level, got %v", got)
	}
}
