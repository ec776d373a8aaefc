package service

import (
	"context"
	"log"
	"sync"
	"time"

	"raffle-storefront/internal/cache"
	"raffle-storefront/internal/model"
	"raffle-storefront/internal/repository"
)

// ActivityService writes and reads the activity journal.
type ActivityService struct {
	repo   repository.ActivityRepository
	buffer cache.ActivityBuffer
	wg     sync.WaitGroup
}

// NewActivityService creates an activity service writing straight to repo.
// Returns nil if repo is nil; a nil service drops every record.
func NewActivityService(repo repository.ActivityRepository) *ActivityService {
	if repo == nil {
		return nil
	}
	return &ActivityService{repo: repo}
}

// SetBuffer routes writes through a write-behind buffer.
func (s *ActivityService) SetBuffer(buffer cache.ActivityBuffer) {
	s.buffer = buffer
}

// Record stores a row asynchronously so a click never waits on the journal.
func (s *ActivityService) Record(a *model.Activity) {
	if s == nil || a == nil {
		return
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if s.buffer != nil {
			err := s.buffer.Add(ctx, a)
			if err == nil {
				return
			}
			log.Printf("[ActivityService] Buffer add failed, writing directly: %v", err)
		}
		if err := s.repo.Insert(ctx, a); err != nil {
			log.Printf("[ActivityService] Failed to record %s of number %d: %v", a.Action, a.Number, err)
		}
	}()
}

// Wait blocks until every pending Record has been written.
func (s *ActivityService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// List returns one page (1-based) of the actor's journal.
func (s *ActivityService) List(ctx context.Context, actorID string, page, limit int) ([]model.Activity, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByActor(ctx, actorID, limit, (page-1)*limit)
}

// Stats returns journal statistics, including rows still buffered.
func (s *ActivityService) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	if s.buffer != nil {
		if n, err := s.buffer.Count(ctx); err == nil {
			stats["buffered"] = n
		}
	}
	return stats, nil
}

// Prune deletes rows older than retention.
func (s *ActivityService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, retention)
}

// CreateFlushFunc creates a flush function for the activity buffer.
func CreateFlushFunc(repo repository.ActivityRepository) cache.FlushFunc {
	return func(ctx context.Context, items []*model.Activity) error {
		return repo.BatchInsert(ctx, items)
	}
}
