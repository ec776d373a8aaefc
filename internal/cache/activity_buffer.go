package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"raffle-storefront/internal/model"

	"github.com/redis/go-redis/v9"
)

// Buffer tuning.
const (
	MaxBatchSize = 200
	FlushTimeout = 30 * time.Second
)

// FlushFunc persists a batch of buffered journal rows.
type FlushFunc func(ctx context.Context, items []*model.Activity) error

// RedisActivityBuffer is a write-behind queue for journal rows. Rows are
// appended to a Redis list and drained in batches by a background flusher,
// so a slow journal database never delays a click.
type RedisActivityBuffer struct {
	client      *redis.Client
	flushFunc   FlushFunc
	flushTicker *time.Ticker
	stopFlush   chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
	flushMu     sync.Mutex
	key         string
}

// NewRedisActivityBuffer starts a buffer on client flushing every interval.
func NewRedisActivityBuffer(client *redis.Client, keyPrefix string, interval time.Duration, flushFunc FlushFunc) *RedisActivityBuffer {
	if keyPrefix == "" {
		keyPrefix = "raffle-storefront"
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	b := &RedisActivityBuffer{
		client:      client,
		flushFunc:   flushFunc,
		flushTicker: time.NewTicker(interval),
		stopFlush:   make(chan struct{}),
		stopped:     make(chan struct{}),
		key:         keyPrefix + ":activity:buffer",
	}

	go b.backgroundFlush()

	log.Printf("[RedisActivityBuffer] Started - key:%s, flush:%v, batch:%d", b.key, interval, MaxBatchSize)
	return b
}

// Add queues one row.
func (b *RedisActivityBuffer) Add(ctx context.Context, a *model.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return b.client.RPush(ctx, b.key, data).Err()
}

// Count returns the number of queued rows.
func (b *RedisActivityBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.key).Result()
}

// FlushBatch writes up to MaxBatchSize rows from the head of the queue.
// Rows are removed only after flushFunc succeeds.
func (b *RedisActivityBuffer) FlushBatch(ctx context.Context) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	raw, err := b.client.LRange(ctx, b.key, 0, MaxBatchSize-1).Result()
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}

	items := make([]*model.Activity, 0, len(raw))
	for _, r := range raw {
		var a model.Activity
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			log.Printf("[RedisActivityBuffer] Dropping undecodable row: %v", err)
			continue
		}
		items = append(items, &a)
	}

	if len(items) > 0 {
		if err := b.flushFunc(ctx, items); err != nil {
			log.Printf("[RedisActivityBuffer] Flush error: %v", err)
			return 0, err
		}
	}

	if err := b.client.LTrim(ctx, b.key, int64(len(raw)), -1).Err(); err != nil {
		log.Printf("[RedisActivityBuffer] Error trimming queue: %v", err)
	}

	log.Printf("[RedisActivityBuffer] Flushed %d rows", len(items))
	return len(raw), nil
}

// Flush drains the whole queue.
func (b *RedisActivityBuffer) Flush(ctx context.Context) error {
	for {
		n, err := b.FlushBatch(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (b *RedisActivityBuffer) backgroundFlush() {
	defer close(b.stopped)
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				log.Printf("[RedisActivityBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stopFlush:
			log.Printf("[RedisActivityBuffer] Shutdown: flushing remaining rows...")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := b.Flush(ctx); err != nil {
				log.Printf("[RedisActivityBuffer] Shutdown flush error: %v", err)
			}
			cancel()
			log.Printf("[RedisActivityBuffer] Shutdown flush complete")
			return
		}
	}
}

// Close stops the flusher after a final drain. The client is not closed.
func (b *RedisActivityBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		close(b.stopFlush)
	})
	<-b.stopped
	return nil
}
