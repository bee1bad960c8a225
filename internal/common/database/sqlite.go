// internal/common/database/sqlite.go
package database

import (
	"database/sql"
	"fmt"

	"trade-match-engine/internal/common/config"

	_ "modernc.org/sqlite"
)

// NewSQLite opens a single-writer SQLite database for the local CLI.
// Use ":memory:" for a throwaway database.
func NewSQLite(cfg config.SQLiteConfig) (*SQLClient, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}

	// sqlite serializes writers; one connection also keeps :memory: stable
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &SQLClient{DB: db, Dialect: DialectSQLite}, nil
}
