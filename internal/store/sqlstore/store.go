// Package sqlstore persists lifecycle state and candidate data in Postgres,
// or in SQLite for the local CLI. Queries are written with $n placeholders,
// each used once and in order, and rebound for SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"trade-match-engine/internal/common/database"
	"trade-match-engine/internal/common/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

var placeholder = regexp.MustCompile(`\$\d+`)

type Store struct {
	db      *sql.DB
	dialect string
	logger  logger.Logger
}

func New(client *database.SQLClient, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	dialect := client.Dialect
	if dialect == "" {
		dialect = database.DialectPostgres
	}
	return &Store{
		db:      client.DB,
		dialect: dialect,
		logger:  log.WithFields(map[string]interface{}{"component": "sqlstore", "dialect": dialect}),
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	script, err := migrations.ReadFile("migrations/" + s.dialect + ".sql")
	if err != nil {
		return fmt.Errorf("no migrations for dialect %s: %w", s.dialect, err)
	}
	for _, stmt := range strings.Split(string(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Info("schema migrated", nil)
	return nil
}

func (s *Store) rebind(query string) string {
	if s.dialect != database.DialectSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

// in renders "$start, $start+1, ..." for n values.
func in(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func (s *Store) timeArg(t time.Time) interface{} {
	if s.dialect == database.DialectSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func (s *Store) nullTimeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return s.timeArg(*t)
}

// timestamp scans TIMESTAMPTZ values from lib/pq and RFC 3339 text from SQLite.
type timestamp struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (ts *timestamp) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		ts.Time, ts.Valid = time.Time{}, false
		return nil
	case time.Time:
		ts.Time, ts.Valid = v.UTC(), true
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", value)
}

func (ts *timestamp) parse(v string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			ts.Time, ts.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unparsable timestamp %q", v)
}

func (ts timestamp) ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// isUniqueViolation recognizes unique-key races from either driver.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
