// Package repository persists the activity journal.
package repository

import (
	"context"
	"time"

	"raffle-storefront/internal/model"
)

// ActivityRepository stores one row per attempted remote mutation.
type ActivityRepository interface {
	// Insert stores a single row and sets its ID.
	Insert(ctx context.Context, a *model.Activity) error

	// BatchInsert stores many rows in one transaction.
	BatchInsert(ctx context.Context, items []*model.Activity) error

	// ListByActor returns the actor's rows, newest first, and the total row count.
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]model.Activity, int64, error)

	// DeleteOlderThan prunes rows created before now-retention.
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)

	// GetStats returns statistics about the journal database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}
