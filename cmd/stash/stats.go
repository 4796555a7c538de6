package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/stats"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbHealth := fs.Bool("db", false, "Include local database section (views, lookup cache, staged writes)")
	sample := fs.Bool("sample", false, "Use the bundled sample collection instead of the configured source")
	top := fs.Int("top", 10, "Number of brands and colors to list")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	ctx := context.Background()

	records, name, err := loadRecords(ctx, cfg, *sample)
	if err != nil {
		log.Fatalf("load %s: %v", name, err)
	}

	// --- Collection ---

	s := stats.Summarize(records)
	fmt.Printf("Source:                %s\n", name)
	fmt.Printf("Records:               %d\n", s.Records)
	fmt.Printf("Skeins:                %s\n", humanize.Comma(int64(s.Skeins)))
	fmt.Printf("Total yards:           %s (%.1f miles)\n", humanize.Comma(int64(s.TotalYards)), s.Miles())
	fmt.Printf("Average per record:    %s yd\n", humanize.Comma(int64(s.AvgYards)))
	fmt.Printf("Brands / sub-brands:   %d / %d\n", s.Brands, s.SubBrands)
	fmt.Printf("Multicolor:            %d%%\n", s.MulticolorPct)

	printCounts(fmt.Sprintf("Top brands (%d)", *top), stats.TopBrands(records, *top))
	printCounts(fmt.Sprintf("Top colors (%d)", *top), stats.TopColors(records, *top))
	printCounts("Color groups", stats.ColorGroups(records, model.DefaultColorTaxonomy()))
	printCounts("Weights", stats.WeightDistribution(records))

	// --- DB health section ---
	if !*dbHealth {
		return
	}

	st := openDB(cfg)
	defer st.Close()

	fmt.Println()
	fmt.Println("=== Local Database ===")
	fmt.Printf("Path:                  %s\n", cfg.DatabasePath())

	if views, err := st.ListViews(ctx); err == nil {
		fmt.Printf("Saved views:           %d\n", len(views))
	}
	if n, err := st.LookupCount(ctx); err == nil {
		fmt.Printf("Cached lookups:        %d\n", n)
	}
	if n, err := st.StagedCount(ctx); err == nil {
		fmt.Printf("Staged write-backs:    %d\n", n)
	}
	if w, err := st.LatestStaged(ctx); err == nil {
		fmt.Printf("Latest staged:         %d records, %s\n", w.Records, humanize.Time(w.StagedAt))
	}
}

func printCounts(title string, counts []stats.Count) {
	fmt.Printf("\n%s:\n", title)
	if len(counts) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, c := range counts {
		fmt.Printf("  %-35s %d\n", truncate(c.Name, 35), c.Count)
	}
}
