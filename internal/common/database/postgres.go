// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"icp-pipeline/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection used for run history.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a lib/pq pool sized from cfg.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// RunHistorySchema creates the pipeline_runs table and its session index.
const RunHistorySchema = `CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	conversation_id TEXT,
	status TEXT NOT NULL,
	error_code TEXT,
	error_message TEXT,
	companies_found INTEGER NOT NULL DEFAULT 0,
	coresignal_enriched INTEGER NOT NULL DEFAULT 0,
	leads_found INTEGER NOT NULL DEFAULT 0,
	used_mock BOOLEAN NOT NULL DEFAULT FALSE,
	icp_config JSONB,
	metadata JSONB,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_session ON pipeline_runs (session_id, started_at DESC)`

// EnsureSchema applies RunHistorySchema.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, RunHistorySchema); err != nil {
		return fmt.Errorf("ensure run history schema: %w", err)
	}
	return nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
