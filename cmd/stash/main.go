// Command stash is the maintenance CLI for yarnstash.
//
// Usage:
//
//	stash                     Show help
//	stash stats               Collection statistics from the configured source
//	stash stats --db          Statistics + local database health
//	stash events              JSONL event log viewer
//	stash views export|import Move saved views between machines
//	stash staged              Print the latest staged write-back
//	stash lookup <code>...    Resolve barcodes against the product providers
package main

import (
	"fmt"
	"os"
)

const usage = `stash - yarnstash maintenance CLI

Usage:
  stash <command> [flags]

Commands:
  stats       Collection statistics (brands, colors, weights, yardage)
  events      JSONL event log viewer
  views       Export or import saved views as JSON
  staged      Print the latest staged write-back as CSV
  lookup      Resolve barcodes against the product providers

Environment:
  YARNSTASH_SOURCE              Collection file or URL
  YARNSTASH_BASE_PATH           Prefix the source is resolved against
  YARNSTASH_BARCODE_LOOKUP_KEY  barcodelookup.com API key (optional)

Run 'stash <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "stats":
		runStats()
	case "events":
		runEvents()
	case "views":
		runViews()
	case "staged":
		runStaged()
	case "lookup":
		runLookup()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "stash: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
