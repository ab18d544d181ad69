package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readOnlyLogFile(t *testing.T, dir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "vizchat_*.log"))
	if err != nil || len(matches) == 0 {
		t.Fatalf("no log file found in %s", dir)
	}
	data, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	return string(data)
}

func TestLogger_WritesTimestampedLines(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger()
	if err := l.Init(dir, false); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	l.Log("plain entry")
	l.Logf("formatted %d", 42)
	l.Close()

	content := readOnlyLogFile(t, dir)
	for _, want := range []string{"Session started", "plain entry", "formatted 42", "Session ended"} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
	if !strings.HasPrefix(content, "[") {
		t.Errorf("entries should start with a timestamp:\n%s", content)
	}
}

func TestLogger_EachRunGetsOwnFile(t *testing.T) {
	dir := t.TempDir()

	first := NewLogger()
	if err := first.Init(dir, false); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	first.Close()

	second := NewLogger()
	if err := second.Init(dir, false); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	second.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "vizchat_*.log"))
	if len(matches) != 2 {
		t.Errorf("expected 2 run files, got %v", matches)
	}
}

func TestLogger_SafeBeforeInit(t *testing.T) {
	l := NewLogger()
	l.Log("dropped")
	l.Logf("also %s", "dropped")
	l.Close()
}
