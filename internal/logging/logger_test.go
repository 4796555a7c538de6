package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpersBeforeInitAreNoops(t *testing.T) {
	saved := Logger
	Logger = nil
	defer func() { Logger = saved }()

	Info("ignored")
	Warn("ignored", "k", 1)
	if WithPrefix("sync") != nil {
		t.Error("WithPrefix before Init should be nil")
	}
}

func TestLevelFiltering(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()

	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	Info("parsed rows", "count", 16)
	Warn("fallback in use", "source", "sample collection")

	out := buf.String()
	if strings.Contains(out, "parsed rows") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "fallback in use") || !strings.Contains(out, "sample collection") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()

	var buf bytes.Buffer
	InitWriter(&buf, "chatty")
	Debug("hidden")
	Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
