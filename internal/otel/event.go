// Package otel records structured events for yarnstash.
//
// Events are typed structs written as JSONL lines by an async Logger. An
// optional RingBuffer keeps the most recent events in memory so the
// dashboard can show recent sync activity.
package otel

import (
	"encoding/json"
	"time"
)

// Level is event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// rank orders levels for filtering.
func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// AtLeast reports whether l is as severe as min.
func (l Level) AtLeast(min Level) bool {
	return l.rank() >= min.rank()
}

// EventKind names an event as "<subsystem>.<action>".
type EventKind string

const (
	// Sync engine
	KindSyncStart     EventKind = "sync.start"
	KindSyncLoad      EventKind = "sync.load"
	KindSyncLoaded    EventKind = "sync.loaded"
	KindSyncUnchanged EventKind = "sync.unchanged"
	KindSyncError     EventKind = "sync.error"
	KindSyncRetry     EventKind = "sync.retry"
	KindSyncDegraded  EventKind = "sync.degraded"
	KindSyncFallback  EventKind = "sync.fallback"
	KindSyncSkipped   EventKind = "sync.skipped"
	KindSyncStop      EventKind = "sync.stop"
	KindParseWarning  EventKind = "parse.warning"
	KindWriteBack     EventKind = "sync.write_back"

	// Store and views
	KindFilterApply EventKind = "filter.apply"
	KindViewSave    EventKind = "view.save"
	KindViewLoad    EventKind = "view.load"
	KindViewDelete  EventKind = "view.delete"
	KindRecordSave  EventKind = "record.upsert"
	KindStoreError  EventKind = "store.error"

	// Product lookup and scanning
	KindLookupStart EventKind = "lookup.start"
	KindLookupHit   EventKind = "lookup.hit"
	KindLookupMiss  EventKind = "lookup.miss"
	KindLookupError EventKind = "lookup.error"
	KindScan        EventKind = "scan.code"
	KindScanCommit  EventKind = "scan.commit"

	// Process
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindUIMsg    EventKind = "ui.msg"
)

// Event is one observability record. Everything except Kind and Time is
// optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "sync", "state", "lookup", "scan", "ui", "main"
	SessionID string         `json:"session_id,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // filled from Dur when marshaling
	Count     int            `json:"count,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Source    string         `json:"source,omitempty"`
	Code      string         `json:"code,omitempty"` // scanned product code
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if e.Dur > 0 {
		p.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(p)
}
