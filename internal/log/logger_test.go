// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	prev := GetLevel()
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level LogLevel
		ok    bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, ok := ParseLevel(tt.in)
			if level != tt.level || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%s, %v), want (%s, %v)", tt.in, level, ok, tt.level, tt.ok)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below WARN were logged: %q", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("expected WARN and ERROR lines, got %q", out)
	}
}

func TestNamedLogger(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	Named("frontend").Debugf("window %d", 480)

	if !strings.Contains(buf.String(), "[DEBUG] frontend: window 480") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
