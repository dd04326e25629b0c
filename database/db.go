package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Connect opens the PostgreSQL pool. Idle connections are not kept, which suits
// serverless Postgres that suspends idle compute.
func Connect(ctx context.Context, url string, maxOpen int, log *slog.Logger) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Warn("database ping failed, continuing", "err", err)
	} else {
		log.Info("connected to postgres", "max_open_conns", maxOpen)
	}
	return db, nil
}
