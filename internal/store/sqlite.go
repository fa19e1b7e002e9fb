package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/scout/internal/shared"
)

// SQLite implements [Store] on a SQLite database. The schema is applied by
// the shared migration runner before the store is constructed.
type SQLite struct {
	db     *sql.DB
	logger *log.Logger
}

// New wraps an already-opened database connection.
func New(db *sql.DB, logger *log.Logger) *SQLite {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SQLite{db: db, logger: logger.With("component", "store")}
}

// Open opens the database at path, applies pending migrations, and returns
// a ready store.
func Open(path string, logger *log.Logger) (*SQLite, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return New(db, logger), nil
}

// Close releases the underlying connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB exposes the connection for diagnostics commands.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// marshalJSON renders a value for a JSON text column, with a fallback that
// keeps the column valid.
func marshalJSON(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return empty
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalCounts(data string) map[string]int64 {
	if data == "" || data == "{}" {
		return nil
	}
	var out map[string]int64
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil
	}
	return out
}
