package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func withCapture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := withCapture(t)
	SetLevel(WARN)

	InfoC("test", "should not appear")
	WarnC("test", "should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("info line emitted at WARN level:\n%s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn line missing:\n%s", out)
	}
}

func TestLogger_FormatIncludesLevelAndComponent(t *testing.T) {
	buf := withCapture(t)
	SetLevel(DEBUG)

	DebugC("schedule", "trigger installed")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] [schedule] trigger installed") {
		t.Errorf("unexpected format: %q", out)
	}
}

func TestLogger_FieldsSortedByKey(t *testing.T) {
	buf := withCapture(t)
	SetLevel(INFO)

	InfoCF("test", "msg", map[string]any{"zebra": 1, "alpha": "x", "mid": true})

	out := buf.String()
	alpha := strings.Index(out, "alpha=x")
	mid := strings.Index(out, "mid=true")
	zebra := strings.Index(out, "zebra=1")
	if alpha < 0 || mid < 0 || zebra < 0 {
		t.Fatalf("fields missing: %q", out)
	}
	if !(alpha < mid && mid < zebra) {
		t.Errorf("fields not sorted: %q", out)
	}
}
