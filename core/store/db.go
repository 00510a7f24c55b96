package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fleetops/config"
	"fleetops/core/schema"
	"fleetops/core/utils"
)

const pingTimeout = 5 * time.Second

// NewDB opens the configured engine and checks that it answers.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	switch cfg.EffectiveDriver() {
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.PostgresURL())
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		if err := ping(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if logger != nil {
			logger.Printf("database: postgres")
		}
		return db, nil
	default:
		path := cfg.SQLitePath()
		db, err := OpenSQLiteFile(path, false)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Printf("database: sqlite %s", path)
		}
		return db, nil
	}
}

// OpenSQLiteFile opens the SQLite database at path. A read-only handle never
// creates the file.
func OpenSQLiteFile(path string, readOnly bool) (*sql.DB, error) {
	if !readOnly {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", schema.SQLiteDSN(path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
