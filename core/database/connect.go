package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/postbot/core/logger"
)

const (
	readyTimeout  = 30 * time.Second
	readyInterval = 2 * time.Second
)

// Connect opens the database connection, waits until the server answers,
// and configures the pool.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err == nil {
		if err = WaitReady(ctx, db, readyTimeout); err != nil {
			_ = db.Close()
		}
	}
	took := logger.Took(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("host", cfg.Host),
			slog.String("db", cfg.Name),
			slog.Int64("duration_ms", took.Milliseconds()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Int64("duration_ms", took.Milliseconds()),
	)
	return db, nil
}

// WaitReady pings the database until it answers, timeout passes, or ctx ends.
func WaitReady(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyInterval)
	defer ticker.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		logger.DB.Debug("db not ready",
			slog.String("event", "db.ping"),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}
