package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLActivityRepository stores the journal in MySQL.
type MySQLActivityRepository struct {
	*sqlActivityStore
}

// NewMySQLActivityRepository connects with a DSN such as
// "user:pass@tcp(host:3306)/db?parseTime=true".
func NewMySQLActivityRepository(dsn string) (*MySQLActivityRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLActivityRepository] Initialized with pool: max=%d, idle=%d", 25, 10)
	return &MySQLActivityRepository{
		sqlActivityStore: &sqlActivityStore{db: db, name: "MySQL"},
	}, nil
}

func createMySQLTables(ctx context.Context, db *sql.DB) error {
	// MySQL runs one statement per Exec without multiStatements.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS raffle_activity (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			request_id VARCHAR(64) NOT NULL DEFAULT '',
			actor_id VARCHAR(128) NOT NULL,
			raffle_id VARCHAR(128) NOT NULL,
			number INT NOT NULL,
			action VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			message TEXT NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME(3) NOT NULL,
			INDEX idx_activity_actor (actor_id, created_at),
			INDEX idx_activity_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var _ ActivityRepository = (*MySQLActivityRepository)(nil)
