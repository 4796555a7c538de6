package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/yarnstash/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the event counters and the most recent events.
// Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, now time.Time, width, height int) string {
	if ring == nil {
		return ""
	}

	counts := ring.Counts()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Event Counts"))
	lines = append(lines, fmt.Sprintf("  Sync:       %d loaded, %d unchanged, %d errors, %d retries",
		counts[otel.KindSyncLoaded], counts[otel.KindSyncUnchanged], counts[otel.KindSyncError], counts[otel.KindSyncRetry]))
	lines = append(lines, fmt.Sprintf("  Fallback:   %d switches, %d degraded",
		counts[otel.KindSyncFallback], counts[otel.KindSyncDegraded]))
	lines = append(lines, fmt.Sprintf("  Filters:    %d applied, %d parse warnings",
		counts[otel.KindFilterApply], counts[otel.KindParseWarning]))
	lines = append(lines, fmt.Sprintf("  Lookups:    %d hits, %d misses, %d errors",
		counts[otel.KindLookupHit], counts[otel.KindLookupMiss], counts[otel.KindLookupError]))
	lines = append(lines, fmt.Sprintf("  Scans:      %d codes, %d commits, %d write-backs",
		counts[otel.KindScan], counts[otel.KindScanCommit], counts[otel.KindWriteBack]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-18s", formatAge(now.Sub(e.Time)), string(e.Kind))
		if e.Code != "" {
			line += "  " + e.Code
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := max(height-debugPanelChrome, 1)
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := min(76, width-4)
	panelWidth = max(panelWidth, 20)

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
