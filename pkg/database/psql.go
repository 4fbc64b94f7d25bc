package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresURI build a postgres connect string
func PostgresURI(user, password, host string, port int, db string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", user, password, host, port, db)
}

// NewDatabaseConnection open a pgx pool, retrying per d.Retry
func NewDatabaseConnection(ctx context.Context, d DSN) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(d.URI)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	return dialWithRetry(ctx, "postgres "+dbConfig.ConnConfig.Host, d.Retry, func(ctx context.Context) (*pgxpool.Pool, error) {
		return pgxpool.ConnectConfig(ctx, dbConfig)
	})
}
