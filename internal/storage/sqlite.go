// Package storage provides SQLite-based persistence for survival scores.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultLimit is the length of the high-score table.
const DefaultLimit = 20

// Store manages the SQLite database connection for score persistence.
type Store struct {
	db       *sql.DB
	tickTime time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTickTime sets the tick duration used to convert survival ticks into
// seconds. The default is 20ms.
func WithTickTime(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.tickTime = d
		}
	}
}

// Survivor is one player's best run.
type Survivor struct {
	Name      string
	Ticks     int
	Seconds   float64
	Runs      int
	CreatedAt time.Time
}

// Run is a single recorded survival.
type Run struct {
	ID        int64
	Name      string
	Ticks     int
	Seconds   float64
	CreatedAt time.Time
}

// Stats aggregates every recorded run.
type Stats struct {
	Runs       int
	Players    int
	BestSecs   float64
	AvgSecs    float64
	LastPlayed time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string, opts ...Option) (*Store, error) {
	// Expand ~ to home directory
	if dbPath == "~" || strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// Scores arrive from concurrent goroutines; one connection serialises
	// the writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db, tickTime: 20 * time.Millisecond}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS survivals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			seconds REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_survivals_name ON survivals(name);
		CREATE INDEX IF NOT EXISTS idx_survivals_top ON survivals(seconds DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordSurvival stores one run. It satisfies loop.ScoreSink.
func (s *Store) RecordSurvival(name string, survivalTicks int) error {
	if survivalTicks <= 0 {
		return nil
	}
	if name == "" {
		name = "anonymous"
	}
	secs := float64(survivalTicks) * s.tickTime.Seconds()
	_, err := s.db.Exec(
		"INSERT INTO survivals (name, ticks, seconds) VALUES (?, ?, ?)",
		name, survivalTicks, secs,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save survival: %w", err)
	}
	return nil
}

// TopSurvivors returns the best run of each name, longest first.
func (s *Store) TopSurvivors(limit int) ([]Survivor, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.Query(
		`SELECT name, MAX(ticks), MAX(seconds), COUNT(*), MAX(created_at)
		 FROM survivals
		 GROUP BY name
		 ORDER BY MAX(seconds) DESC, name ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query survivors: %w", err)
	}
	defer rows.Close()

	var out []Survivor
	for rows.Next() {
		var e Survivor
		var createdAt any
		if err := rows.Scan(&e.Name, &e.Ticks, &e.Seconds, &e.Runs, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.Query(
		`SELECT id, name, ticks, seconds, created_at
		 FROM survivals
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var createdAt any
		if err := rows.Scan(&r.ID, &r.Name, &r.Ticks, &r.Seconds, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// Best returns the longest survival of name in seconds, 0 if none.
func (s *Store) Best(name string) (float64, error) {
	var secs sql.NullFloat64
	err := s.db.QueryRow(
		"SELECT MAX(seconds) FROM survivals WHERE name = ?",
		name,
	).Scan(&secs)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot query best survival: %w", err)
	}
	if !secs.Valid {
		return 0, nil
	}
	return secs.Float64, nil
}

// Stats returns aggregated statistics over every run.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}
	var last any
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT name), COALESCE(MAX(seconds), 0), COALESCE(AVG(seconds), 0), MAX(created_at)
		 FROM survivals`,
	).Scan(&st.Runs, &st.Players, &st.BestSecs, &st.AvgSecs, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: cannot get stats: %w", err)
	}
	st.LastPlayed = parseTime(last)
	return st, nil
}

// Clear deletes every recorded run.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM survivals"); err != nil {
		return fmt.Errorf("storage: cannot clear survivals: %w", err)
	}
	return nil
}

// parseTime handles both time.Time and string datetimes from the driver.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
