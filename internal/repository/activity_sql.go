package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"raffle-storefront/internal/model"
)

const activityColumns = `request_id, actor_id, raffle_id, number, action, status, message, duration_ms, created_at`

// sqlActivityStore holds the queries shared by every SQL backend. Queries are
// written with ? placeholders and rebound for drivers that number them.
type sqlActivityStore struct {
	db       *sql.DB
	name     string
	numbered bool // $1, $2 placeholders

	// serialize is set for SQLite, which allows a single writer.
	serialize bool
	mu        sync.RWMutex
}

func (s *sqlActivityStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlActivityStore) lock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *sqlActivityStore) rlock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func normalizeActivity(a *model.Activity) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Millisecond)
}

func activityArgs(a *model.Activity) []interface{} {
	return []interface{}{
		a.RequestID, a.ActorID, a.RaffleID, a.Number, string(a.Action),
		a.Status, a.Message, a.DurationMs, a.CreatedAt,
	}
}

func (s *sqlActivityStore) insertQuery() string {
	q := `INSERT INTO raffle_activity (` + activityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.numbered {
		q += ` RETURNING id`
	}
	return s.rebind(q)
}

// Insert stores a single row.
func (s *sqlActivityStore) Insert(ctx context.Context, a *model.Activity) error {
	defer s.lock()()
	normalizeActivity(a)

	if s.numbered {
		if err := s.db.QueryRowContext(ctx, s.insertQuery(), activityArgs(a)...).Scan(&a.ID); err != nil {
			return fmt.Errorf("failed to insert activity: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.insertQuery(), activityArgs(a)...)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// BatchInsert stores many rows in one transaction.
func (s *sqlActivityStore) BatchInsert(ctx context.Context, items []*model.Activity) error {
	if len(items) == 0 {
		return nil
	}
	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO raffle_activity (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range items {
		normalizeActivity(a)
		if _, err := stmt.ExecContext(ctx, activityArgs(a)...); err != nil {
			return fmt.Errorf("failed to insert activity for number %d: %w", a.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByActor returns the actor's rows, newest first.
func (s *sqlActivityStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]model.Activity, int64, error) {
	defer s.rlock()()

	var total int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM raffle_activity WHERE actor_id = ?`), actorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activity: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, `+activityColumns+`
		FROM raffle_activity
		WHERE actor_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`), actorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	items := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		var action string
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ActorID, &a.RaffleID, &a.Number, &action,
			&a.Status, &a.Message, &a.DurationMs, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Action = model.ActivityAction(action)
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read activity: %w", err)
	}
	return items, total, nil
}

// DeleteOlderThan prunes rows created before now-retention.
func (s *sqlActivityStore) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	defer s.lock()()

	cutoff := time.Now().Add(-retention).UTC()
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM raffle_activity WHERE created_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activity: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("[%s] Pruned %d activity rows (retention: %v)", s.name, deleted, retention)
	}
	return deleted, nil
}

// baseStats counts rows per status.
func (s *sqlActivityStore) baseStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raffle_activity`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_activity"] = total

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM raffle_activity GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byStatus := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		byStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats["by_status"] = byStatus
	stats["backend"] = s.name

	return stats, nil
}

// GetStats returns statistics about the journal database.
func (s *sqlActivityStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer s.rlock()()
	return s.baseStats(ctx)
}

// Close closes the database connection.
func (s *sqlActivityStore) Close() error {
	return s.db.Close()
}
