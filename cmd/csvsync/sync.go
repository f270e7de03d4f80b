package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/csvsync/internal/archive"
	"github.com/ligustah/csvsync/internal/auth"
	synchttp "github.com/ligustah/csvsync/internal/http"
	"github.com/ligustah/csvsync/internal/model"
	"github.com/ligustah/csvsync/internal/store"
	"github.com/ligustah/csvsync/internal/syncjob"
)

// runSync performs one sync run: lookup, authenticate, download, parse.
func runSync(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	showProgress := fs.Bool("progress", false, "Show download progress on stderr")
	archiveBucket := fs.String("archive", "", "Bucket URL to archive the raw download into (s3://, gs://, file://)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: csvsync run [options]

Resolve the latest export from the database, authenticate against the
identity provider, stream the CSV and log a summary of its records.

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
	if *showProgress {
		cfg.Progress = true
	}
	if *archiveBucket != "" {
		cfg.Archive.Bucket = *archiveBucket
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	m, err := model.Lookup(cfg.Database.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Received interrupt, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	s, err := store.Open(ctx, cfg.Database.Client, cfg.Database.DSN)
	if err != nil {
		logger.Error("Failed to open database", "client", cfg.Database.Client, "error", err)
		return ExitLookupFailed
	}
	defer s.Close()

	client := synchttp.NewClient(synchttp.Options{
		MaxIdleConnsPerHost:   cfg.HTTP.MaxIdleConnsPerHost,
		ResponseHeaderTimeout: cfg.HTTP.ResponseHeaderTimeout,
		RetryAttempts:         cfg.HTTP.Retry.Attempts,
		RetryBackoff:          cfg.HTTP.Retry.Backoff,
		RetryMaxBackoff:       cfg.HTTP.Retry.MaxBackoff,
	})

	authenticator := auth.New(auth.Options{
		TokenURL:     cfg.Auth.TokenEndpoint(),
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
		Scopes:       cfg.Auth.Scopes,
	}, client.HTTPClient())

	var archiver *archive.Archiver
	if cfg.Archive.Bucket != "" {
		archiver, err = archive.Open(ctx, cfg.Archive.Bucket, archive.Options{
			Prefix:     cfg.Archive.Prefix,
			BufferSize: int(cfg.Archive.BufferSize),
		})
		if err != nil {
			logger.Error("Failed to open archive bucket", "error", err)
			return ExitArchiveFailed
		}
		defer archiver.Close()
	}

	job := syncjob.New(s, authenticator, client, syncjob.Options{
		Model:    m,
		Service:  cfg.Service.Name,
		Logger:   logger,
		Archiver: archiver,
		Progress: cfg.Progress,
	})

	if _, err := job.Run(ctx); err != nil {
		return exitCode(err)
	}
	return ExitSuccess
}
