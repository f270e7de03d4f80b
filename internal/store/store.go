package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ligustah/csvsync/internal/model"
)

// Common errors.
var (
	ErrNoURL         = errors.New("store: no data file url found")
	ErrUnknownClient = errors.New("store: unknown database client")
)

// Client names accepted by Open.
const (
	ClientPostgres   = "postgres"
	ClientClickHouse = "clickhouse"
	ClientSQLite     = "sqlite"
)

// Store looks up export file URLs.
type Store interface {
	// LatestURL returns the URL of the newest export for m.
	// It returns ErrNoURL when the table holds no usable URL.
	LatestURL(ctx context.Context, m model.Model) (string, error)

	// Close releases the underlying connections.
	Close() error
}

// Open connects to the database named by client using dsn and verifies the
// connection.
func Open(ctx context.Context, client, dsn string) (Store, error) {
	switch strings.ToLower(client) {
	case ClientPostgres, "postgresql", "pg":
		return OpenPostgres(ctx, dsn)
	case ClientClickHouse:
		return OpenClickHouse(ctx, dsn)
	case ClientSQLite:
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClient, client)
	}
}

// latestURLQuery builds the lookup query for m. quote wraps an identifier
// in the dialect's quoting.
func latestURLQuery(m model.Model, quote func(string) string, nullsLast bool) string {
	order := quote(m.OrderColumn) + " DESC"
	if nullsLast {
		order += " NULLS LAST"
	}
	return "SELECT " + quote(m.URLColumn) +
		" FROM " + quote(m.Table) +
		" WHERE " + quote(m.URLColumn) + " IS NOT NULL" +
		" ORDER BY " + order +
		" LIMIT 1"
}

// checkURL trims the looked-up URL and rejects blanks.
func checkURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrNoURL
	}
	return url, nil
}
