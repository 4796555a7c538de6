package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
)

func runViews() {
	fs := flag.NewFlagSet("views", flag.ExitOnError)
	path := fs.String("file", "", "JSON file (default: <data dir>/views.json)")
	fs.Parse(os.Args[1:])

	if fs.NArg() != 1 || (fs.Arg(0) != "export" && fs.Arg(0) != "import") {
		fmt.Fprintln(os.Stderr, "usage: stash views [--file path] export|import")
		os.Exit(1)
	}

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	file := *path
	if file == "" {
		file = cfg.ViewsExportPath()
	}

	ctx := context.Background()
	switch fs.Arg(0) {
	case "export":
		n, err := st.ExportViews(ctx, file)
		if err != nil {
			log.Fatalf("export views: %v", err)
		}
		fmt.Printf("Exported %d views to %s\n", n, file)
	case "import":
		n, err := st.ImportViews(ctx, file)
		if err != nil {
			log.Fatalf("import views: %v", err)
		}
		fmt.Printf("Imported %d views from %s\n", n, file)
	}
}
