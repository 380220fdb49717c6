// Package stopdb stores the prebuilt stop search index in SQLite. The index
// holds every stop covered by the IDFM real-time perimeter together with the
// lines serving it; the indexer rebuilds it from scratch rather than updating
// rows in place.
package stopdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"github.com/tomlapa/paris-transit-dashboard/internal/appconf"
)

//go:embed schema.sql
var ddl string

// Config describes where the index database lives.
type Config struct {
	Path string
	Env  appconf.Environment
}

// Client is the entry point for reading and rebuilding the stop index.
type Client struct {
	config Config
	DB     *sql.DB
	logger *slog.Logger
}

// NewClient opens the index database at config.Path, creating the schema when
// the file is new.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to open stop index DB: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: config,
		DB:     db,
		logger: logger.With(slog.String("component", "stopdb")),
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Path() string {
	return c.config.Path
}

func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.Path != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.Path)
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := applyPragmas(ctx, db); err != nil {
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}
	if err := performDatabaseMigration(ctx, db); err != nil {
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	configureConnectionPool(db, config)

	return db, nil
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	statements := strings.Split(ddl, "-- migrate") // Split DDL into individual statements
	for _, stmt := range statements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue // Skip empty statements
		}
		if _, err := db.ExecContext(ctx, trimmedStmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmedStmt, err)
		}
	}
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// configureConnectionPool sets up appropriate connection pool settings for
// SQLite. Each connection to a :memory: database gets its own separate
// database instance, so in-memory databases are limited to one connection.
// File databases in WAL mode support concurrent readers and a single writer.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.Path == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
}
