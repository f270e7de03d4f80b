//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ligustah/csvsync/internal/model"
	"github.com/ligustah/csvsync/internal/testutils"
)

func TestPostgresLatestURLIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := testutils.StartPostgresContainer(t, ctx)
	defer func() {
		if err := pg.Close(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	s, err := Open(ctx, ClientPostgres, pg.DSN)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	p := s.(*Postgres)

	t.Run("empty table", func(t *testing.T) {
		if _, err := p.pool.Exec(ctx, `CREATE TABLE cepr_files (
			id         SERIAL PRIMARY KEY,
			url        TEXT,
			created_at TIMESTAMPTZ
		)`); err != nil {
			t.Fatalf("create table: %v", err)
		}
		_, err := s.LatestURL(ctx, model.CEPR)
		if !errors.Is(err, ErrNoURL) {
			t.Fatalf("expected ErrNoURL, got %v", err)
		}
	})

	t.Run("newest wins", func(t *testing.T) {
		rows := []struct {
			url any
			at  string
		}{
			{"https://vault.example.com/files/a.csv", "2024-01-01T00:00:00Z"},
			{"https://vault.example.com/files/c.csv", "2024-03-01T00:00:00Z"},
			{nil, "2024-04-01T00:00:00Z"},
			{"https://vault.example.com/files/b.csv", "2024-02-01T00:00:00Z"},
		}
		for _, r := range rows {
			if _, err := p.pool.Exec(ctx,
				`INSERT INTO cepr_files (url, created_at) VALUES ($1, $2)`, r.url, r.at); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		url, err := s.LatestURL(ctx, model.CEPR)
		if err != nil {
			t.Fatalf("LatestURL: %v", err)
		}
		if url != "https://vault.example.com/files/c.csv" {
			t.Errorf("unexpected url %q", url)
		}
	})
}
