package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/abelbrown/yarnstash/internal/store"
)

// runStaged prints the newest staged write-back so it can be copied over
// the source by hand.
func runStaged() {
	fs := flag.NewFlagSet("staged", flag.ExitOnError)
	out := fs.String("o", "", "Write the CSV to a file instead of stdout")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	w, err := st.LatestStaged(context.Background())
	if errors.Is(err, store.ErrNothingStaged) {
		fmt.Fprintln(os.Stderr, "Nothing staged yet. Edits and scans made in yarnstash are staged here.")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("latest staged: %v", err)
	}

	if *out == "" {
		fmt.Print(w.Body)
		return
	}
	if err := os.WriteFile(*out, []byte(w.Body), 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d records staged %s to %s\n", w.Records, w.StagedAt.Format("2006-01-02 15:04"), *out)
}
