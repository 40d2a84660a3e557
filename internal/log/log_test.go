// ABOUTME: Tests for the logging package
// ABOUTME: Validates level filtering, level parsing and output redirection

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	saved := GetLevel()
	defer SetLevel(saved)

	SetLevel(LevelDebug)
	if GetLevel() != LevelDebug {
		t.Errorf("expected LevelDebug, got %v", GetLevel())
	}

	SetLevel(LevelError)
	if GetLevel() != LevelError {
		t.Errorf("expected LevelError, got %v", GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want any
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	saved := GetLevel()
	defer SetLevel(saved)
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelInfo)
	Debug("hidden %s", "value")

	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestWarnWritesMessage(t *testing.T) {
	saved := GetLevel()
	defer SetLevel(saved)
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(LevelDebug)
	Warn("persist failed: %d", 42)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected level=WARN in %q", out)
	}
	if !strings.Contains(out, "persist failed: 42") {
		t.Errorf("expected formatted message in %q", out)
	}
}
