package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines the connection-pool parameters for the Catalog Store's
// single SQLite database.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int // readers may run concurrently; writes still serialize under WAL
}

// DefaultConfig returns the pool settings this system runs with: a short
// busy_timeout so a write contending with a reader backs off quickly
// instead of piling up, and a small connection cap since lineupd is a
// single process with one writer (§5 "single-writer catalog model").
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

// Open initializes the Catalog Store's SQLite connection pool with the
// PRAGMAs §5 requires: WAL journaling so readers never block the writer,
// busy_timeout so a transient writer-lock conflict retries instead of
// failing immediately, NORMAL synchronous (safe under WAL), and foreign
// key enforcement switched on. Enforcement applies only to REFERENCES
// constraints; the catalog schema declares none.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	// modernc.org/sqlite applies _pragma DSN params to every pooled
	// connection, which plain PRAGMA statements after Open would not.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return db, nil
}
