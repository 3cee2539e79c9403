// Package store owns the contribution events and their derived weekly
// aggregates. SQLite in WAL mode; everything above it is a pure function
// over snapshots read from here.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling and prepared statements.
type DB struct {
	*sql.DB
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// NewDB opens (creating if needed) the contribution database under dataDir.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "contributions.db")
	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &DB{
		DB:       db,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := s.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Contribution store initialized", "path", dbPath)
	return s, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS contribution_events (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			week_start TEXT NOT NULL,
			event_type TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1,
			timestamp DATETIME NOT NULL,
			verified INTEGER NOT NULL DEFAULT 0,
			repo TEXT NOT NULL DEFAULT '',
			cid TEXT NOT NULL DEFAULT '',
			reputation_points REAL NOT NULL DEFAULT 0,
			anchored_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_actor_time
			ON contribution_events(actor_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_week
			ON contribution_events(week_start)`,
		`CREATE TABLE IF NOT EXISTS weekly_aggregates (
			actor_id TEXT NOT NULL,
			week_start TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (actor_id, week_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weekly_week
			ON weekly_aggregates(week_start)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_event": `INSERT OR IGNORE INTO contribution_events
			(id, actor_id, week_start, event_type, weight, timestamp, verified, repo, cid, reputation_points, anchored_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"bump_weekly": `INSERT INTO weekly_aggregates (actor_id, week_start, count)
			VALUES (?, ?, 1)
			ON CONFLICT(actor_id, week_start) DO UPDATE SET count = count + 1`,
		"events_by_actor": `SELECT id, actor_id, week_start, event_type, weight, timestamp, verified, repo, cid, reputation_points, anchored_at
			FROM contribution_events
			WHERE actor_id = ? AND verified = 1
			ORDER BY timestamp ASC, id ASC`,
		"weekly_by_actor": `SELECT actor_id, week_start, count
			FROM weekly_aggregates
			WHERE actor_id = ? AND week_start >= ?
			ORDER BY week_start ASC`,
		"weekly_window": `SELECT actor_id, week_start, count
			FROM weekly_aggregates
			WHERE week_start >= ?
			ORDER BY week_start ASC, actor_id ASC`,
	}

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("preparing %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}
	return nil
}

func (db *DB) stmt(name string) *sql.Stmt {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.prepared[name]
}

// PoolStats returns connection pool statistics for the health endpoint.
func (db *DB) PoolStats() map[string]interface{} {
	stats := db.DB.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
}

// Close releases prepared statements and the underlying pool.
func (db *DB) Close() error {
	db.mutex.Lock()
	for _, stmt := range db.prepared {
		stmt.Close()
	}
	db.prepared = nil
	db.mutex.Unlock()
	return db.DB.Close()
}
