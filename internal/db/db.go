package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"dynshop/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding durable market state.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database in dir and runs migrations.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "market.db")
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS market_index (
				good_kind     TEXT PRIMARY KEY,
				demand_index  REAL NOT NULL,
				supply_index  REAL NOT NULL,
				volatility    REAL NOT NULL,
				last_updated  INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS listing_stats (
				listing_id              TEXT PRIMARY KEY,
				good_kind               TEXT NOT NULL,
				buy_count               INTEGER NOT NULL DEFAULT 0,
				sell_count              INTEGER NOT NULL DEFAULT 0,
				last_buy_time           INTEGER NOT NULL DEFAULT 0,
				last_sell_time          INTEGER NOT NULL DEFAULT 0,
				price_adjustment_factor REAL NOT NULL DEFAULT 1.0
			);
			CREATE INDEX IF NOT EXISTS idx_listing_stats_good ON listing_stats(good_kind);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (market state)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for use by other packages.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
