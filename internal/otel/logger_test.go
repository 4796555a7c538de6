package otel

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindSyncLoaded, Comp: "sync", Count: 16, Source: "stash.csv", Dur: 1500 * time.Millisecond})
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	ev := lines[0]
	if ev["kind"] != "sync.loaded" || ev["comp"] != "sync" || ev["source"] != "stash.csv" {
		t.Errorf("unexpected event %v", ev)
	}
	if ev["level"] != "info" {
		t.Errorf("level should default to info, got %v", ev["level"])
	}
	if ev["dur_ms"] != 1500.0 {
		t.Errorf("dur_ms = %v, want 1500", ev["dur_ms"])
	}
	if sid, _ := ev["session_id"].(string); len(sid) != 16 {
		t.Errorf("session_id should be 16 chars, got %q", sid)
	}
}

func TestOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindStartup})
	l.Close()

	line := buf.String()
	for _, field := range []string{"dur_ms", "count", "attempt", "source", "code", "err", "msg", "extra"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Errorf("field %q should be omitted: %s", field, line)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindLookupStart, Comp: "lookup"})
		}()
	}
	wg.Wait()
	l.Close()

	if got := len(decodeLines(t, &buf)); got != 100 {
		t.Errorf("expected 100 lines, got %d", got)
	}
}

func TestHelpersAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info(KindSyncStart, "sync", "starting")
	l.Warn(KindSyncRetry, "sync", "retrying")
	l.Error(KindSyncError, "sync", errForTest("connection refused"))
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	want := []string{"info", "warn", "error"}
	for i, lvl := range want {
		if lines[i]["level"] != lvl {
			t.Errorf("line %d level = %v, want %s", i, lines[i]["level"], lvl)
		}
	}
	if lines[2]["err"] != "connection refused" {
		t.Errorf("err = %v", lines[2]["err"])
	}
}

func TestDebugRequiresTrace(t *testing.T) {
	orig := TraceEnabled()
	defer SetTraceEnabled(orig)

	var buf bytes.Buffer
	l := NewLogger(&buf)
	SetTraceEnabled(false)
	l.Debug(KindUIMsg, "ui", "hidden")
	SetTraceEnabled(true)
	l.Debug(KindUIMsg, "ui", "shown")
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Errorf("expected only the traced event, got %v", lines)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	l.Info(KindStartup, "main", "x")
	l.Error(KindSyncError, "sync", nil)
	l.SetRingBuffer(NewRingBuffer(4))
	l.Close()
	if l.Dropped() != 0 || l.Session() != "" {
		t.Error("nil logger should report nothing")
	}
}

func TestCloseIsIdempotentAndDropsLateEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Info(KindStartup, "main", "start")
	l.Close()
	l.Close()

	l.Info(KindShutdown, "main", "late")
	if l.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", l.Dropped())
	}
}

func TestDropsWhenQueueFull(t *testing.T) {
	bw := &blockingWriter{started: make(chan struct{}), release: make(chan struct{})}
	l := NewLogger(bw)

	l.Emit(Event{Kind: KindSyncLoad})
	<-bw.started
	for i := 0; i < queueSize+10; i++ {
		l.Emit(Event{Kind: KindSyncLoad})
	}
	if l.Dropped() == 0 {
		t.Error("expected drops with a full queue")
	}
	close(bw.release)
	l.Close()
}

func TestRingReceivesEvents(t *testing.T) {
	l := NewNullLogger()
	ring := NewRingBuffer(8)
	l.SetRingBuffer(ring)
	l.Warn(KindSyncDegraded, "sync", "giving up")
	l.Close()

	got := ring.Snapshot()
	if len(got) != 1 || got[0].Kind != KindSyncDegraded {
		t.Errorf("ring = %v", got)
	}
}

type blockingWriter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.release
	})
	return len(p), nil
}

type errForTest string

func (e errForTest) Error() string { return string(e) }
