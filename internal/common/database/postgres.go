// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trade-match-engine/internal/common/config"

	_ "github.com/lib/pq"
)

// Dialect names understood by the SQL store.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLClient wraps a database/sql pool together with the dialect it speaks.
type SQLClient struct {
	DB      *sql.DB
	Dialect string
}

// PostgresClient is kept as the name used by the worker manager.
type PostgresClient = SQLClient

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLClient{DB: db, Dialect: DialectPostgres}, nil
}

// Ping tests the database connection
func (c *SQLClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *SQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// GetDB returns the underlying *sql.DB
func (c *SQLClient) GetDB() *sql.DB {
	return c.DB
}
