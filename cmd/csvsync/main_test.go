package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ligustah/csvsync/internal/store"
	"github.com/ligustah/csvsync/internal/syncjob"
	"github.com/ligustah/csvsync/internal/testutils"
)

const testToken = "cli-token"

type env struct {
	tokens *testutils.TokenServer
	files  *testutils.FileServer
	dbPath string
	config string
}

// setup creates a sqlite database pointing at a file server and writes a
// config file wiring everything together.
func setup(t *testing.T, body, issuedToken string, withRow bool) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		tokens: testutils.StartTokenServer(t, issuedToken),
		files:  testutils.StartFileServer(t, "/exports/latest.csv", testToken, body),
		dbPath: filepath.Join(dir, "csvsync.db"),
		config: filepath.Join(dir, "config.yaml"),
	}

	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, e.dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()
	if _, err := db.DB().ExecContext(ctx,
		`CREATE TABLE cepr_files (id INTEGER PRIMARY KEY, url TEXT, created_at TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if withRow {
		if _, err := db.DB().ExecContext(ctx,
			`INSERT INTO cepr_files (url, created_at) VALUES (?, ?)`,
			e.files.FileURL(), "2024-05-01T00:00:00Z"); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	cfg := fmt.Sprintf(`service:
  name: csvsync-test
  env: test
database:
  client: sqlite
  model: cepr
  dsn: %s
auth:
  token_url: %s
  client_id: csvsync
logging:
  format: text
  level: debug
`, e.dbPath, e.tokens.TokenURL())
	if err := os.WriteFile(e.config, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return e
}

func TestRunCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, ExitInvalidArgs},
		{"help", []string{"help"}, ExitSuccess},
		{"unknown", []string{"upload"}, ExitInvalidArgs},
		{"bad flag", []string{"run", "-nope"}, ExitInvalidArgs},
		{"missing config file", []string{"run", "-config", filepath.Join(t.TempDir(), "missing.yaml")}, ExitInvalidArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRunSync(t *testing.T) {
	e := setup(t, "cepr,dob,dtr\n0101901234,1990-01-01,2024-05-01\n", testToken, true)

	if code := run([]string{"run", "-config", e.config}); code != ExitSuccess {
		t.Fatalf("exit code %d, want %d", code, ExitSuccess)
	}
	if e.files.Requests() != 1 {
		t.Errorf("file requests = %d, want 1", e.files.Requests())
	}
}

func TestRunSyncArchive(t *testing.T) {
	body := "cepr,dob,dtr\n0101901234,1990-01-01,2024-05-01\n"
	e := setup(t, body, testToken, true)
	archiveDir := t.TempDir()

	code := run([]string{"run", "-config", e.config, "-archive", "file://" + filepath.ToSlash(archiveDir)})
	if code != ExitSuccess {
		t.Fatalf("exit code %d, want %d", code, ExitSuccess)
	}

	var found []string
	filepath.WalkDir(archiveDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, "latest.csv") {
			found = append(found, path)
		}
		return nil
	})
	if len(found) != 1 {
		t.Fatalf("expected one archived file, found %v", found)
	}
	got, err := os.ReadFile(found[0])
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if string(got) != body {
		t.Errorf("archived %q, want %q", got, body)
	}
}

func TestRunSyncFailures(t *testing.T) {
	t.Run("no url", func(t *testing.T) {
		e := setup(t, "cepr,dob,dtr\n", testToken, false)
		if code := run([]string{"run", "-config", e.config}); code != ExitLookupFailed {
			t.Errorf("exit code %d, want %d", code, ExitLookupFailed)
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		e := setup(t, "cepr,dob,dtr\n", "", true)
		if code := run([]string{"run", "-config", e.config}); code != ExitAuthFailed {
			t.Errorf("exit code %d, want %d", code, ExitAuthFailed)
		}
		if e.files.Requests() != 0 {
			t.Error("download attempted after failed authentication")
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		e := setup(t, "cepr,dob,dtr\n", "stale-token", true)
		if code := run([]string{"run", "-config", e.config}); code != ExitStreamFailed {
			t.Errorf("exit code %d, want %d", code, ExitStreamFailed)
		}
	})

	t.Run("malformed csv", func(t *testing.T) {
		e := setup(t, "cepr,dob,dtr\n1,2\n", testToken, true)
		if code := run([]string{"run", "-config", e.config}); code != ExitParseFailed {
			t.Errorf("exit code %d, want %d", code, ExitParseFailed)
		}
	})
}

func TestRunLatest(t *testing.T) {
	e := setup(t, "", testToken, true)
	if code := run([]string{"latest", "-config", e.config}); code != ExitSuccess {
		t.Errorf("exit code %d, want %d", code, ExitSuccess)
	}

	empty := setup(t, "", testToken, false)
	if code := run([]string{"latest", "-config", empty.config}); code != ExitLookupFailed {
		t.Errorf("exit code %d, want %d", code, ExitLookupFailed)
	}
}

func TestExitCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{cause, ExitGeneralError},
		{&syncjob.LookupError{Err: cause}, ExitLookupFailed},
		{&syncjob.AuthError{Err: cause}, ExitAuthFailed},
		{&syncjob.StreamError{Err: cause}, ExitStreamFailed},
		{fmt.Errorf("wrapped: %w", &syncjob.ParseError{Err: cause}), ExitParseFailed},
		{&syncjob.ArchiveError{Err: cause}, ExitArchiveFailed},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
