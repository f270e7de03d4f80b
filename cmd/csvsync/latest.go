package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/csvsync/internal/model"
	"github.com/ligustah/csvsync/internal/store"
)

// runLatest resolves and prints the latest export URL without downloading.
func runLatest(args []string) int {
	fs := flag.NewFlagSet("latest", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: csvsync latest [options]

Print the URL of the newest export recorded in the database.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "Error: database dsn is required")
		return ExitInvalidArgs
	}

	m, err := model.Lookup(cfg.Database.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.Database.Client, cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return ExitLookupFailed
	}
	defer s.Close()

	url, err := s.LatestURL(ctx, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitLookupFailed
	}

	fmt.Println(url)
	return ExitSuccess
}
