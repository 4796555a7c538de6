package ui

import (
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
	"github.com/abelbrown/yarnstash/internal/scan"
	"github.com/abelbrown/yarnstash/internal/state"
	"github.com/abelbrown/yarnstash/internal/syncer"
)

// StateChanged carries a fresh copy of the store after records, filters,
// or views changed.
type StateChanged struct {
	Change   state.Change
	Snapshot state.Snapshot
}

// SyncStatus is sent on every sync engine state change.
type SyncStatus struct {
	Status syncer.Status
}

// Notice is a one-line message for the notice bar.
type Notice struct {
	Text  string
	Level otel.Level
}

// ActionDone reports a finished view or record action.
type ActionDone struct {
	Op  string // "save view", "load view", "delete view", "refresh"
	Err error
}

// WriteBackDone reports a record edit that was pushed toward the source.
type WriteBackDone struct {
	Record model.Record
	Result syncer.WriteBackResult
	Err    error
}

// Scanned reports one scanned code.
type Scanned struct {
	Result  scan.Result
	Pending []scan.Item
	Summary scan.Summary
	Err     error
}

// ScanReviewed is sent after a pending item was edited, discarded or
// restored.
type ScanReviewed struct {
	Pending []scan.Item
	Summary scan.Summary
	Err     error
}

// ScanCommitted reports the end of a review.
type ScanCommitted struct {
	Added     []model.Record
	WriteBack syncer.WriteBackResult
	Pending   []scan.Item // items that failed to save stay queued
	Summary   scan.Summary
	Err       error
}
