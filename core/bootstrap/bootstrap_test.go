package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/postbot/core/config"
	coredatabase "github.com/m3rciful/postbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	connected := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if connected {
		t.Fatal("connect must not run without a database host")
	}
	if res.DB != nil {
		t.Fatal("expected nil DB")
	}
	if err := res.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunMigrationFailureClosesDB(t *testing.T) {
	db, err := sqlx.Open("postgres", "host=localhost dbname=none")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	boom := errors.New("boom")
	_, err = Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Host: "localhost"},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return db, nil
		},
		Migrate: func(coredatabase.Config) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected migration error, got %v", err)
	}
	if pingErr := db.Ping(); pingErr == nil || pingErr.Error() != "sql: database is closed" {
		t.Fatalf("db should be closed, ping = %v", pingErr)
	}
}

func TestRunNilConfig(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
