// Package syncer keeps the in-memory record set in step with the
// collection source.
//
// The Engine loads the source once, then polls its freshness marker and
// reloads only when the marker advances. Failed loads are retried with
// exponential backoff; once attempts run out the engine switches to the
// fallback source if one is configured, otherwise it reports an empty set.
// While on the fallback, a tick refetches the primary only after its marker
// moves, and switches back once that content parses.
//
// Only one fetch runs at a time. A poll tick or forced refresh that arrives
// while a fetch is in flight is dropped, not queued.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cespare/xxhash/v2"

	"github.com/abelbrown/yarnstash/internal/fetch"
	"github.com/abelbrown/yarnstash/internal/logging"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
	"github.com/abelbrown/yarnstash/internal/tabular"
)

const comp = "sync"

type trigger int

const (
	triggerInitial trigger = iota
	triggerTick
	triggerRetry
	triggerForce
)

func (t trigger) String() string {
	return [...]string{"initial", "tick", "retry", "force"}[t]
}

// Engine owns the polling lifecycle for one source.
type Engine struct {
	opts    Options
	codec   tabular.Codec
	sched   Scheduler
	events  *otel.Logger
	backoff *backoff.ExponentialBackOff

	mu          sync.Mutex
	primary     fetch.Source
	active      fetch.Source
	state       State
	started     bool
	stopped     bool
	inFlight    bool
	attempts    int
	retryIn     time.Duration
	marker      fetch.Freshness
	// last marker the primary reported while it could not be loaded
	primaryMark fetch.Freshness
	primarySeen bool
	fingerprint uint64
	hasPrint    bool
	lastSync    time.Time
	lastErr     error
	records     int
	onUpdate    UpdateFunc
	cancelPoll  Cancel
	cancelRetry Cancel
	ctx         context.Context
	cancel      context.CancelFunc

	// notifyMu serializes onUpdate calls from loads and write-backs.
	notifyMu sync.Mutex
}

// New creates an engine for src. A nil src leaves the engine unconfigured:
// Start reports StateUnconfigured and an empty record set.
func New(src fetch.Source, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:    opts,
		codec:   *opts.Codec,
		sched:   opts.Scheduler,
		events:  opts.Events,
		primary: src,
		active:  src,
		state:   StateIdle,
	}
	if e.codec.OnWarning == nil {
		e.codec.OnWarning = e.parseWarning
	}

	// delay(n) = base * 2^n for the n-th failure, no jitter.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * opts.RetryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max(time.Hour, b.InitialInterval)
	b.Reset()
	e.backoff = b
	return e
}

// Start begins syncing and returns immediately; the first load runs in the
// background. Cancelling ctx has the same effect as Stop.
func (e *Engine) Start(ctx context.Context, onUpdate UpdateFunc) error {
	e.mu.Lock()
	switch {
	case e.stopped:
		e.mu.Unlock()
		return ErrStopped
	case e.started:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.onUpdate = onUpdate
	e.ctx, e.cancel = context.WithCancel(ctx)
	context.AfterFunc(e.ctx, e.Stop)

	if e.active == nil {
		e.state = StateUnconfigured
		e.mu.Unlock()
		e.events.Warn(otel.KindSyncStart, comp, "no source configured")
		e.publish()
		e.notify(nil)
		return nil
	}

	e.state = StateLoading
	e.mu.Unlock()

	e.events.Emit(otel.Event{Kind: otel.KindSyncStart, Comp: comp, Source: e.active.Name()})
	e.publish()
	e.schedulePoll()
	go e.run(triggerInitial)
	return nil
}

// Stop cancels every pending timer. An in-flight fetch finishes but its
// result is discarded. Safe to call from any state and more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.state = StateStopped
	if e.cancelPoll != nil {
		e.cancelPoll()
		e.cancelPoll = nil
	}
	if e.cancelRetry != nil {
		e.cancelRetry()
		e.cancelRetry = nil
	}
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.events.Info(otel.KindSyncStop, comp, "sync stopped")
	e.publish()
}

// ForceRefresh loads the source now, outside the poll cadence. The poll
// timer is not reset. It blocks until the load finishes and reports false
// when it was skipped because another fetch was in flight or the engine
// is not running.
func (e *Engine) ForceRefresh() bool {
	return e.run(triggerForce)
}

// WriteBack serializes records, stages the text, and hands the records to
// the update callback as if they had been loaded. Nothing is written to the
// source itself, so the change lasts only until the next reload that sees
// a newer source. The result reports staging problems; it never blocks on
// the source.
func (e *Engine) WriteBack(ctx context.Context, records []model.Record) WriteBackResult {
	text, err := e.codec.Serialize(records)
	if err != nil {
		e.events.Error(otel.KindWriteBack, comp, err)
		return WriteBackResult{Message: fmt.Sprintf("serialize: %v", err)}
	}

	e.mu.Lock()
	running := e.started && !e.stopped
	e.mu.Unlock()
	if !running {
		return WriteBackResult{Message: "sync is not running"}
	}

	var stageErr error
	if e.opts.Stager != nil {
		stageErr = e.opts.Stager.Stage(ctx, text, len(records))
	}

	e.mu.Lock()
	e.fingerprint, e.hasPrint = xxhash.Sum64String(text), true
	e.records = len(records)
	e.mu.Unlock()

	e.notify(model.CloneRecords(records))
	e.publish()

	if stageErr != nil {
		e.events.Error(otel.KindWriteBack, comp, stageErr)
		logging.Warn("write-back staging failed", "err", stageErr)
		return WriteBackResult{Message: fmt.Sprintf("updated in memory; staging failed: %v", stageErr)}
	}
	e.events.Emit(otel.Event{Kind: otel.KindWriteBack, Comp: comp, Count: len(records), Msg: "staged"})
	logging.Info("write-back staged", "records", len(records), "bytes", len(text))
	return WriteBackResult{
		Success: true,
		Message: fmt.Sprintf("staged %d records; the source file is unchanged", len(records)),
	}
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	s := Status{
		State:         e.state,
		UsingFallback: e.active != nil && e.active != e.primary,
		Attempt:       e.attempts,
		LastSync:      e.lastSync,
		Records:       e.records,
	}
	if e.active != nil {
		s.Source = e.active.Name()
	}
	if e.state == StateRetrying {
		s.RetryIn = e.retryIn
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}

func (e *Engine) publish() {
	if e.opts.OnStatus == nil {
		return
	}
	e.opts.OnStatus(e.Status())
}

// run is the single entry point for every load. It returns false when the
// load was skipped.
func (e *Engine) run(t trigger) bool {
	if !e.acquire(t) {
		return false
	}
	defer e.release()

	if e.onFallback() {
		switch t {
		case triggerTick:
			e.probePrimary(false)
			return true
		case triggerForce:
			if e.probePrimary(true) {
				return true
			}
		}
	}
	if t == triggerTick {
		if !e.changed() {
			return true
		}
	}
	e.load(t)
	return true
}

func (e *Engine) acquire(t trigger) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.stopped || e.active == nil {
		return false
	}
	if t == triggerRetry {
		e.cancelRetry = nil
	}
	if e.inFlight {
		e.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindSyncSkipped, Comp: comp, Msg: t.String()})
		return false
	}
	// While a retry is pending it owns the next attempt.
	if t == triggerTick && e.state == StateRetrying {
		return false
	}
	if t == triggerForce && e.state == StateDegraded {
		e.attempts = 0
		e.backoff.Reset()
	}
	e.inFlight = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

func (e *Engine) onFallback() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != e.primary
}

// changed checks the active source's freshness marker.
func (e *Engine) changed() bool {
	e.mu.Lock()
	ctx, src, prev := e.ctx, e.active, e.marker
	e.mu.Unlock()

	fresh, err := src.Freshness(ctx)
	if err != nil {
		e.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindSyncError, Comp: comp, Source: src.Name(), Err: err.Error(), Msg: "freshness check"})
		return false
	}
	return fresh.Advanced(prev)
}

// probePrimary runs on ticks while the fallback is active. The primary is
// fetched only when its marker has moved since it last failed (or always,
// when force is set), and the engine switches back only after that fetch
// parses. The fallback stays active, and Watching, while the primary is
// still broken. It reports whether the engine switched.
func (e *Engine) probePrimary(force bool) bool {
	e.mu.Lock()
	ctx, primary, mark, seen := e.ctx, e.primary, e.primaryMark, e.primarySeen
	e.mu.Unlock()

	fresh, err := primary.Freshness(ctx)
	if err != nil && !force {
		return false
	}
	if !force && seen && !fresh.Advanced(mark) {
		return false
	}

	res := e.fetchOnce(ctx, primary)
	if e.isStopped() {
		return false
	}
	if !res.OK() {
		e.mu.Lock()
		e.primaryMark, e.primarySeen = latest(fresh, res.Freshness), true
		e.mu.Unlock()
		e.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindSyncError, Comp: comp, Source: primary.Name(), Err: res.Err.Error(), Msg: "primary probe"})
		return false
	}

	e.mu.Lock()
	e.active = primary
	e.primaryMark, e.primarySeen = fetch.Freshness{}, false
	e.hasPrint = false
	e.mu.Unlock()
	e.events.Info(otel.KindSyncFallback, comp, "primary source is back")
	logging.Info("primary source reachable again", "source", primary.Name())
	e.succeed(triggerTick, res)
	return true
}

// latest prefers the marker that came with the content.
func latest(probed, fetched fetch.Freshness) fetch.Freshness {
	if fetched.IsZero() {
		return probed
	}
	return fetched
}

// load runs fetch-and-parse until it succeeds, schedules a retry, or
// gives up.
func (e *Engine) load(t trigger) {
	for {
		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return
		}
		e.state = StateLoading
		ctx, src := e.ctx, e.active
		e.mu.Unlock()
		e.publish()

		start := e.opts.Clock.Now()
		res := e.fetchOnce(ctx, src)
		if e.isStopped() {
			return
		}
		if res.OK() {
			e.events.Emit(otel.Event{
				Kind: otel.KindSyncLoaded, Comp: comp, Source: src.Name(),
				Count: len(res.Records), Dur: e.opts.Clock.Since(start), Msg: t.String(),
			})
			e.succeed(t, res)
			return
		}

		attempt := e.fail(src, res)
		e.events.Emit(otel.Event{
			Level: otel.LevelWarn, Kind: otel.KindSyncError, Comp: comp, Source: src.Name(),
			Attempt: attempt, Err: res.Err.Error(), Msg: res.Kind.String(),
		})
		if attempt < e.opts.MaxLoadAttempts {
			e.scheduleRetry(attempt)
			return
		}
		if e.switchToFallback() {
			continue
		}
		e.degrade()
		return
	}
}

func (e *Engine) fetchOnce(ctx context.Context, src fetch.Source) LoadResult {
	content, err := src.Fetch(ctx)
	if err != nil {
		return LoadResult{Kind: KindUnavailable, Err: err}
	}
	records, err := e.codec.Parse(string(content.Body))
	switch {
	case errors.Is(err, tabular.ErrSourceEmpty):
		return LoadResult{Kind: KindEmpty, Err: err, Freshness: content.Freshness}
	case err != nil:
		return LoadResult{Kind: KindUnavailable, Err: fmt.Errorf("parse: %w", err), Freshness: content.Freshness}
	}
	return LoadResult{
		Records:     records,
		Freshness:   content.Freshness,
		Fingerprint: xxhash.Sum64(content.Body),
	}
}

func (e *Engine) succeed(t trigger, res LoadResult) {
	e.mu.Lock()
	unchanged := e.hasPrint && e.fingerprint == res.Fingerprint
	e.fingerprint, e.hasPrint = res.Fingerprint, true
	e.marker = res.Freshness
	e.attempts = 0
	e.backoff.Reset()
	if e.cancelRetry != nil {
		e.cancelRetry()
		e.cancelRetry = nil
	}
	e.state = StateWatching
	e.lastSync = e.opts.Clock.Now()
	e.lastErr = nil
	e.records = len(res.Records)
	e.mu.Unlock()
	e.publish()

	// A touched but identical file is not worth a new record set.
	if unchanged && t == triggerTick {
		e.events.Debug(otel.KindSyncUnchanged, comp, "content fingerprint unchanged")
		return
	}
	e.notify(res.Records)
}

func (e *Engine) fail(src fetch.Source, res LoadResult) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if src == e.primary && !res.Freshness.IsZero() {
		e.primaryMark, e.primarySeen = res.Freshness, true
	}
	e.attempts++
	e.lastErr = res.Err
	return e.attempts
}

func (e *Engine) scheduleRetry(attempt int) {
	delay := e.backoff.NextBackOff()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if e.cancelRetry != nil {
		e.cancelRetry()
	}
	e.cancelRetry = e.sched.Schedule(delay, func() { e.run(triggerRetry) })
	e.state = StateRetrying
	e.retryIn = delay
	e.mu.Unlock()

	e.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindSyncRetry, Comp: comp, Attempt: attempt, Dur: delay})
	e.publish()
}

func (e *Engine) switchToFallback() bool {
	e.mu.Lock()
	fb := e.opts.Fallback
	if fb == nil || e.active == fb {
		e.mu.Unlock()
		return false
	}
	from := e.active.Name()
	e.active = fb
	e.marker = fetch.Freshness{}
	e.hasPrint = false
	e.attempts = 0
	e.backoff.Reset()
	e.mu.Unlock()

	e.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindSyncFallback, Comp: comp, Source: fb.Name(), Msg: "primary unavailable: " + from})
	logging.Warn("switching to fallback data", "primary", from, "fallback", fb.Name())
	return true
}

func (e *Engine) degrade() {
	e.mu.Lock()
	e.state = StateDegraded
	e.hasPrint = false
	e.records = 0
	src := e.active.Name()
	e.mu.Unlock()

	e.events.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindSyncDegraded, Comp: comp, Source: src, Msg: "load attempts exhausted"})
	logging.Error("giving up on source", "source", src, "attempts", e.opts.MaxLoadAttempts)
	e.publish()
	e.notify(nil)
}

func (e *Engine) schedulePoll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.cancelPoll = e.sched.Schedule(e.opts.PollInterval, e.tick)
}

func (e *Engine) tick() {
	e.schedulePoll()
	e.run(triggerTick)
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// notify delivers a record set unless the engine has stopped. A nil set is
// delivered as an empty, non-nil slice.
func (e *Engine) notify(records []model.Record) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	fn, stopped := e.onUpdate, e.stopped
	e.mu.Unlock()
	if stopped || fn == nil {
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	fn(records)
}

func (e *Engine) parseWarning(w tabular.Warning) {
	e.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindParseWarning, Comp: comp, Msg: w.String()})
	logging.Warn("parse warning", "line", w.Line, "msg", w.Msg)
}
