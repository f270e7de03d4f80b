package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/ligustah/csvsync/internal/model"
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the SQLite database at dsn (a path or file: URI).
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// LatestURL implements Store.
func (s *SQLite) LatestURL(ctx context.Context, m model.Model) (string, error) {
	q := latestURLQuery(m, func(id string) string { return `"` + id + `"` }, false)

	var url sql.NullString
	if err := s.db.QueryRowContext(ctx, q).Scan(&url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoURL
		}
		return "", fmt.Errorf("query latest url: %w", err)
	}
	if !url.Valid {
		return "", ErrNoURL
	}
	return checkURL(url.String)
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle, mainly for seeding in tests and tools.
func (s *SQLite) DB() *sql.DB {
	return s.db
}
