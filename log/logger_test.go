package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	SetLevel(Warning)
	logger := New("test")
	logger.Info("hidden")
	logger.Warning("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message emitted at warning level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "[test]") {
		t.Errorf("expected warning with module name, got %q", out)
	}

	SetModuleLevel("test", Debug)
	if !Enabled("test", Debug) {
		t.Error("expected debug enabled for module")
	}
	if Enabled("other", Info) {
		t.Error("expected info disabled for other modules")
	}
	SetLevel(Notice)
	SetModuleLevel("test", Notice)
}
