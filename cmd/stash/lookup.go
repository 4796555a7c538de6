package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/yarnstash/internal/lookup"
)

// runLookup resolves codes the way a scan of an unknown code does, and
// shows how each product maps onto record fields.
func runLookup() {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	noCache := fs.Bool("no-cache", false, "Skip the local lookup cache")
	fs.Parse(os.Args[1:])

	codes := fs.Args()
	if len(codes) == 0 {
		fmt.Fprintln(os.Stderr, "usage: stash lookup [--no-cache] <code> [code...]")
		os.Exit(1)
	}

	cfg := loadConfig()
	opts := lookup.Options{
		Providers: lookup.DefaultProviders(cfg.BarcodeLookupKey, cfg.LookupRate.Std()),
		Timeout:   cfg.LookupTimeout.Std(),
	}
	if !*noCache {
		st := openDB(cfg)
		defer st.Close()
		opts.Persist = st
	}
	svc := lookup.NewService(opts)

	ctx := context.Background()
	for i, code := range codes {
		if i > 0 {
			fmt.Println()
		}
		start := time.Now()
		res, err := svc.Lookup(ctx, code)
		elapsed := time.Since(start).Round(time.Millisecond)

		fmt.Printf("=== %s (%s) ===\n", code, elapsed)
		switch {
		case errors.Is(err, lookup.ErrNoData):
			fmt.Println("  not found")
			continue
		case err != nil:
			fmt.Printf("  error: %v\n", err)
			continue
		}

		fmt.Printf("  source:      %s (confidence %.0f%%)\n", res.Source, res.Confidence*100)
		fmt.Printf("  product:     %s\n", truncate(strings.TrimSpace(res.Product.Brand+" "+res.Product.Name), 70))
		if res.Product.Category != "" {
			fmt.Printf("  category:    %s\n", truncate(res.Product.Category, 70))
		}
		d := res.Data
		fmt.Printf("  brand:       %s\n", d.Brand.Or("-"))
		fmt.Printf("  sub-brand:   %s\n", d.SubBrand.Or("-"))
		fmt.Printf("  weight:      %s\n", d.Weight.Or("").Label())
		fmt.Printf("  material:    %s\n", d.Material.Or("-"))
		if colors := d.Colors.Or(nil); len(colors) > 0 {
			fmt.Printf("  color:       %s\n", strings.Join(colors, ", "))
		}
	}
}
