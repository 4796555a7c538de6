package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/yarnstash/internal/otel"
)

func TestDebugOverlayNilRing(t *testing.T) {
	result := debugOverlay(nil, time.Now(), 80, 24)
	if result != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", result)
	}
}

func TestDebugOverlayRendersCounts(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindSyncLoaded, Time: now})
	ring.Push(otel.Event{Kind: otel.KindSyncLoaded, Time: now})
	ring.Push(otel.Event{Kind: otel.KindSyncError, Time: now})
	ring.Push(otel.Event{Kind: otel.KindLookupHit, Time: now})
	ring.Push(otel.Event{Kind: otel.KindScan, Time: now})

	result := debugOverlay(ring, now, 100, 40)

	if !strings.Contains(result, "Event Counts") {
		t.Error("overlay should contain 'Event Counts' header")
	}
	if !strings.Contains(result, "2 loaded, 0 unchanged, 1 errors") {
		t.Errorf("overlay should show sync counts, got:\n%s", result)
	}
	if !strings.Contains(result, "1 hits, 0 misses") {
		t.Errorf("overlay should show lookup counts, got:\n%s", result)
	}
	if !strings.Contains(result, "5 / 64 events") {
		t.Errorf("overlay should show buffer stats, got:\n%s", result)
	}
}

func TestDebugOverlayRecentEvents(t *testing.T) {
	now := time.Now()
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindSyncStart, Time: now, Msg: "polling sheet"})
	ring.Push(otel.Event{Kind: otel.KindSyncError, Time: now, Err: "timeout"})
	ring.Push(otel.Event{Kind: otel.KindLookupMiss, Time: now, Code: "0123456789"})

	result := debugOverlay(ring, now, 100, 40)

	if !strings.Contains(result, "Recent Events") {
		t.Error("overlay should contain 'Recent Events' header")
	}
	if !strings.Contains(result, "polling sheet") {
		t.Errorf("overlay should show event message, got:\n%s", result)
	}
	if !strings.Contains(result, "ERR:timeout") {
		t.Errorf("overlay should show error, got:\n%s", result)
	}
	if !strings.Contains(result, "0123456789") {
		t.Errorf("overlay should show the scanned code, got:\n%s", result)
	}
}

func TestDebugOverlayTruncation(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	for i := 0; i < 30; i++ {
		ring.Push(otel.Event{Kind: otel.KindSyncStart, Time: time.Now()})
	}

	result := debugOverlay(ring, time.Now(), 80, 10)
	if result == "" {
		t.Error("overlay should still render with small height")
	}
	// height 10 leaves 6 content lines plus border and padding
	if lines := strings.Count(result, "\n"); lines > 12 {
		t.Errorf("overlay should be truncated, got %d lines", lines)
	}
}

func TestDebugToggle(t *testing.T) {
	app := NewApp(Actions{}, otel.NewRingBuffer(16), nil)
	app.ready = true
	app.width = 80
	app.height = 24

	model, _ := app.Update(key("D"))
	updated := model.(App)
	if updated.Mode() != "debug" {
		t.Fatalf("D should show debug overlay, mode = %s", updated.Mode())
	}
	if view := updated.View(); !strings.Contains(view, "[DEBUG]") {
		t.Errorf("debug view should contain '[DEBUG]', got:\n%s", view)
	}

	model, _ = updated.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.(App).Mode() != "table" {
		t.Error("esc should close the debug overlay")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{0, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "2m"},
		{-5 * time.Second, "0ms"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.dur); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("mérinos", 10); got != "mérinos" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncateRunes("alpaca blend", 6); got != "alpac…" {
		t.Errorf("truncateRunes = %q", got)
	}
}
