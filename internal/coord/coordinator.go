// Package coord binds the sync engine, the state store and the scan session
// to the Bubble Tea program.
package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/yarnstash/internal/logging"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
	"github.com/abelbrown/yarnstash/internal/scan"
	"github.com/abelbrown/yarnstash/internal/state"
	"github.com/abelbrown/yarnstash/internal/syncer"
	"github.com/abelbrown/yarnstash/internal/ui"
)

const comp = "coord"

// actionTimeout bounds each UI-triggered action (view persistence, lookups,
// write-back staging).
const actionTimeout = 30 * time.Second

// outboxSize is how many messages may wait for the program to start
// reading.
const outboxSize = 64

var errNoScanner = errors.New("scanning is not available")

// Engine is the part of *syncer.Engine the coordinator drives.
type Engine interface {
	Start(ctx context.Context, onUpdate syncer.UpdateFunc) error
	Stop()
	ForceRefresh() bool
	WriteBack(ctx context.Context, records []model.Record) syncer.WriteBackResult
	Status() syncer.Status
}

// Sender delivers messages to the UI. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Coordinator owns the background goroutines. Cancelling the context passed
// to Start is the only stop mechanism.
type Coordinator struct {
	state  *state.Store
	scans  *scan.Session // nil disables scanning
	events *otel.Logger
	outbox chan tea.Msg

	mu      sync.Mutex
	ctx     context.Context
	engine  Engine
	last    syncer.Status
	noticed bool

	wg sync.WaitGroup
}

// New creates a Coordinator. scans may be nil.
func New(st *state.Store, scans *scan.Session, events *otel.Logger) *Coordinator {
	return &Coordinator{
		state:  st,
		scans:  scans,
		events: events,
		outbox: make(chan tea.Msg, outboxSize),
		ctx:    context.Background(),
	}
}

// Start begins syncing and forwarding to program. It returns once the
// engine is started; the first load runs in the background.
func (c *Coordinator) Start(ctx context.Context, engine Engine, program Sender) error {
	c.mu.Lock()
	c.ctx = ctx
	c.engine = engine
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		c.forward(ctx, program)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		engine.Stop()
		return nil
	})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = g.Wait()
	}()

	if err := engine.Start(ctx, c.apply); err != nil {
		return fmt.Errorf("start sync: %w", err)
	}
	return nil
}

// Wait blocks until the background goroutines exit. Call after cancelling
// the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// apply is the engine's update callback.
func (c *Coordinator) apply(records []model.Record) {
	if c.state.ReplaceRecords(records) {
		logging.Debug("records replaced", "count", len(records))
	}
}

// HandleStatus receives every engine status. Wire it as
// syncer.Options.OnStatus. Persistent failure produces one notice until
// the primary source is healthy again.
func (c *Coordinator) HandleStatus(s syncer.Status) {
	c.mu.Lock()
	c.last = s
	var notice *ui.Notice
	switch {
	case s.State == syncer.StateDegraded && !c.noticed:
		c.noticed = true
		notice = &ui.Notice{Level: otel.LevelError, Text: fmt.Sprintf("Source unavailable (%s). Check the source path, then press R to retry.", s.LastError)}
	case s.UsingFallback && !c.noticed:
		c.noticed = true
		notice = &ui.Notice{Level: otel.LevelWarn, Text: "Source unavailable; showing the sample collection."}
	case s.State == syncer.StateUnconfigured && !c.noticed:
		c.noticed = true
		notice = &ui.Notice{Level: otel.LevelWarn, Text: "No source configured. Set YARNSTASH_SOURCE."}
	case s.State == syncer.StateWatching && !s.UsingFallback:
		c.noticed = false
	}
	c.mu.Unlock()

	c.send(ui.SyncStatus{Status: s})
	if notice != nil {
		c.send(*notice)
	}
}

// Status returns the last engine status seen.
func (c *Coordinator) Status() syncer.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// send queues msg for the program. It never blocks; a full outbox drops
// the message.
func (c *Coordinator) send(msg tea.Msg) {
	select {
	case c.outbox <- msg:
	default:
		c.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindUIMsg, Comp: comp, Msg: fmt.Sprintf("dropped %T", msg)})
	}
}

// forward delivers queued messages and store changes to program until ctx
// ends. It is the only goroutine that calls program.Send, so messages
// arrive in the order they were produced.
func (c *Coordinator) forward(ctx context.Context, program Sender) {
	changes := c.state.Subscribe()
	for {
		var msg tea.Msg
		select {
		case <-ctx.Done():
			return
		case m := <-c.outbox:
			msg = m
		case ch := <-changes:
			// Later changes are covered by the same snapshot.
			for drained := false; !drained; {
				select {
				case ch = <-changes:
				default:
					drained = true
				}
			}
			msg = ui.StateChanged{Change: ch, Snapshot: c.state.Snapshot()}
		}
		if program != nil {
			program.Send(msg)
		}
	}
}

func (c *Coordinator) actionContext() (context.Context, context.CancelFunc) {
	c.mu.Lock()
	parent := c.ctx
	c.mu.Unlock()
	return context.WithTimeout(parent, actionTimeout)
}

func (c *Coordinator) currentEngine() Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// writeBack pushes the current canonical set through the engine.
func (c *Coordinator) writeBack(ctx context.Context) syncer.WriteBackResult {
	engine := c.currentEngine()
	if engine == nil {
		return syncer.WriteBackResult{Message: "sync is not running"}
	}
	res := engine.WriteBack(ctx, c.state.Records())
	if !res.Success {
		logging.Warn("write-back failed", "msg", res.Message)
	}
	return res
}

// Actions builds the command set the UI calls into.
func (c *Coordinator) Actions() ui.Actions {
	return ui.Actions{
		SetFilters: func(spec model.FilterSpec) tea.Cmd {
			return func() tea.Msg {
				c.state.SetFilters(spec)
				return nil
			}
		},
		ResetFilters: func() tea.Cmd {
			return func() tea.Msg {
				c.state.ResetFilters()
				return nil
			}
		},
		SaveView: func(name string) tea.Cmd {
			return func() tea.Msg {
				ctx, cancel := c.actionContext()
				defer cancel()
				_, err := c.state.SaveView(ctx, name)
				return ui.ActionDone{Op: "save view", Err: err}
			}
		},
		LoadView: func(id string) tea.Cmd {
			return func() tea.Msg {
				return ui.ActionDone{Op: "load view", Err: c.state.LoadView(id)}
			}
		},
		DeleteView: func(id string) tea.Cmd {
			return func() tea.Msg {
				ctx, cancel := c.actionContext()
				defer cancel()
				return ui.ActionDone{Op: "delete view", Err: c.state.DeleteView(ctx, id)}
			}
		},
		Refresh: func() tea.Cmd {
			return func() tea.Msg {
				engine := c.currentEngine()
				if engine == nil || !engine.ForceRefresh() {
					return ui.Notice{Level: otel.LevelInfo, Text: "Refresh already in progress."}
				}
				return ui.ActionDone{Op: "refresh"}
			}
		},
		SaveRecord: func(id string, patch model.PartialRecord) tea.Cmd {
			return func() tea.Msg {
				rec, err := c.state.UpsertRecord(id, patch)
				if err != nil {
					return ui.WriteBackDone{Err: err}
				}
				ctx, cancel := c.actionContext()
				defer cancel()
				return ui.WriteBackDone{Record: rec, Result: c.writeBack(ctx)}
			}
		},
		Scan: func(code string) tea.Cmd {
			return func() tea.Msg {
				if c.scans == nil {
					return ui.Scanned{Err: errNoScanner}
				}
				ctx, cancel := c.actionContext()
				defer cancel()
				res, err := c.scans.Scan(ctx, code)
				if err == nil && res.Outcome == scan.Incremented {
					c.writeBack(ctx)
				}
				return ui.Scanned{Result: res, Pending: c.scans.Pending(), Summary: c.scans.Summary(), Err: err}
			}
		},
		EditScan: func(code string, patch model.PartialRecord) tea.Cmd {
			return c.review(func() error { return c.scans.Edit(code, patch) })
		},
		DiscardScan: func(code string) tea.Cmd {
			return c.review(func() error { return c.scans.Discard(code) })
		},
		RestoreScan: func(code string) tea.Cmd {
			return c.review(func() error { return c.scans.Restore(code) })
		},
		CommitScan: func() tea.Cmd {
			return func() tea.Msg {
				if c.scans == nil {
					return ui.ScanCommitted{Err: errNoScanner}
				}
				added, err := c.scans.Commit()
				msg := ui.ScanCommitted{Added: added, Pending: c.scans.Pending(), Summary: c.scans.Summary(), Err: err}
				if len(added) > 0 {
					ctx, cancel := c.actionContext()
					defer cancel()
					msg.WriteBack = c.writeBack(ctx)
				}
				return msg
			}
		},
	}
}

func (c *Coordinator) review(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if c.scans == nil {
			return ui.ScanReviewed{Err: errNoScanner}
		}
		err := fn()
		return ui.ScanReviewed{Pending: c.scans.Pending(), Summary: c.scans.Summary(), Err: err}
	}
}
