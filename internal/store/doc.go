// Package store resolves the newest export file URL from a database.
//
// Three database clients are supported, selected by name once at startup:
//
//	postgres    github.com/jackc/pgx/v5 connection pool
//	clickhouse  github.com/ClickHouse/clickhouse-go/v2 native connection
//	sqlite      modernc.org/sqlite through database/sql
//
// # Usage
//
//	s, err := store.Open(ctx, cfg.Database.Client, cfg.Database.DSN)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	url, err := s.LatestURL(ctx, model.CEPR)
//
// The lookup selects the URL column of the model's table, newest first by
// the model's order column, skipping rows without a URL.
package store
