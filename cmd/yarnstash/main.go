package main

import (
	"context"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/yarnstash/internal/config"
	"github.com/abelbrown/yarnstash/internal/coord"
	"github.com/abelbrown/yarnstash/internal/fetch"
	"github.com/abelbrown/yarnstash/internal/logging"
	"github.com/abelbrown/yarnstash/internal/lookup"
	"github.com/abelbrown/yarnstash/internal/otel"
	"github.com/abelbrown/yarnstash/internal/scan"
	"github.com/abelbrown/yarnstash/internal/state"
	"github.com/abelbrown/yarnstash/internal/store"
	"github.com/abelbrown/yarnstash/internal/syncer"
	"github.com/abelbrown/yarnstash/internal/tabular"
	"github.com/abelbrown/yarnstash/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	if err := logging.Init(cfg.DataDir, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer logging.Close()

	// Structured event log plus an in-memory copy for the debug overlay
	eventFile, err := os.OpenFile(cfg.EventLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer eventFile.Close()
	events := otel.NewLogger(eventFile)
	defer events.Close()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID, err := st.StartSession(ctx, events.Session())
	if err != nil {
		logging.Warn("session not recorded", "err", err)
	}
	events.Info(otel.KindStartup, "main", "yarnstash started")

	stash := state.New(state.Options{Views: st, Events: events})
	if err := stash.LoadViews(ctx); err != nil {
		logging.Warn("saved views unavailable", "err", err)
	}

	var lookuper scan.Lookuper
	if cfg.LookupEnabled {
		lookuper = lookup.NewService(lookup.Options{
			Providers: lookup.DefaultProviders(cfg.BarcodeLookupKey, cfg.LookupRate.Std()),
			Persist:   st,
			Timeout:   cfg.LookupTimeout.Std(),
			Events:    events,
		})
	}
	scans := scan.NewSession(scan.Options{
		Records:  stash,
		Lookup:   lookuper,
		Debounce: cfg.ScanDebounce.Std(),
		Events:   events,
	})

	coordinator := coord.New(stash, scans, events)

	cols := tabular.DefaultColumns()
	cols.ID = cfg.IDColumn
	opts := syncer.Options{
		PollInterval:    cfg.PollInterval.Std(),
		MaxLoadAttempts: cfg.MaxLoadAttempts,
		RetryBase:       cfg.RetryBase.Std(),
		Codec:           tabular.NewCodec(cols),
		Stager:          st,
		Events:          events,
		OnStatus:        coordinator.HandleStatus,
	}
	if cfg.Fallback {
		opts.Fallback = fetch.SampleSource()
	}
	source := fetch.Open(fetch.ResolvePath(cfg.BasePath, cfg.Source), cfg.FetchTimeout.Std())
	engine := syncer.New(source, opts)
	logging.Info("sync configured", "source", cfg.Source, "poll", cfg.PollInterval, "fallback", cfg.Fallback)

	app := ui.NewApp(coordinator.Actions(), ring, stash.Taxonomy())
	program := tea.NewProgram(app, tea.WithAltScreen())

	if err := coordinator.Start(ctx, engine, program); err != nil {
		logging.Error("sync did not start", "err", err)
	}

	// Run UI (blocks until quit)
	if _, err := program.Run(); err != nil {
		log.Printf("Error running program: %v", err)
	}

	// Graceful shutdown
	cancel()
	coordinator.Wait()
	events.Info(otel.KindShutdown, "main", "yarnstash stopped")

	if sessionID != 0 {
		endCtx, endCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := st.EndSession(endCtx, sessionID); err != nil {
			logging.Warn("session end not recorded", "err", err)
		}
		endCancel()
	}
}
