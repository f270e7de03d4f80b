package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ligustah/csvsync/internal/model"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a small pgx pool for dsn and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// One lookup per run.
	cfg.MaxConns = 2
	cfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// LatestURL implements Store.
func (p *Postgres) LatestURL(ctx context.Context, m model.Model) (string, error) {
	q := latestURLQuery(m, func(id string) string { return pgx.Identifier{id}.Sanitize() }, true)

	var url string
	if err := p.pool.QueryRow(ctx, q).Scan(&url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoURL
		}
		return "", fmt.Errorf("query latest url: %w", err)
	}
	return checkURL(url)
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
