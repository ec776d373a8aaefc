package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteActivityRepository is the default journal backend.
// Writes are serialized; WAL mode keeps reads concurrent.
type SQLiteActivityRepository struct {
	*sqlActivityStore
}

// NewSQLiteActivityRepository opens (and creates) the journal at dbPath.
func NewSQLiteActivityRepository(dbPath string) (*SQLiteActivityRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_time_format=sqlite", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteActivityRepository] Initialized with database: %s", dbPath)
	return &SQLiteActivityRepository{
		sqlActivityStore: &sqlActivityStore{db: db, name: "SQLite", serialize: true},
	}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS raffle_activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL DEFAULT '',
		actor_id TEXT NOT NULL,
		raffle_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_actor ON raffle_activity(actor_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_activity_created_at ON raffle_activity(created_at);
	`
	_, err := db.Exec(query)
	return err
}

// GetStats adds the database size to the shared stats.
func (r *SQLiteActivityRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer r.rlock()()

	stats, err := r.baseStats(ctx)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

var _ ActivityRepository = (*SQLiteActivityRepository)(nil)
