package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/abelbrown/yarnstash/internal/config"
	"github.com/abelbrown/yarnstash/internal/fetch"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/store"
	"github.com/abelbrown/yarnstash/internal/tabular"
)

// loadConfig reads the yarnstash config or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	return cfg
}

// openDB opens the store or fatals.
func openDB(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return st
}

// loadRecords reads the configured source once, or the bundled sample.
// Parse warnings go to stderr.
func loadRecords(ctx context.Context, cfg *config.Config, sample bool) ([]model.Record, string, error) {
	var src fetch.Source
	if sample {
		src = fetch.SampleSource()
	} else {
		src = fetch.Open(fetch.ResolvePath(cfg.BasePath, cfg.Source), cfg.FetchTimeout.Std())
	}
	if src == nil {
		return nil, "", fmt.Errorf("no source configured (set YARNSTASH_SOURCE or use --sample)")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout.Std()+5*time.Second)
	defer cancel()
	content, err := src.Fetch(ctx)
	if err != nil {
		return nil, src.Name(), err
	}

	cols := tabular.DefaultColumns()
	cols.ID = cfg.IDColumn
	codec := tabular.NewCodec(cols)
	codec.OnWarning = func(w tabular.Warning) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	records, err := codec.Parse(string(content.Body))
	return records, src.Name(), err
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
