package service

import (
	"sync"
	"time"
)

// Toast levels.
const (
	ToastSuccess = "success"
	ToastWarning = "warning"
	ToastError   = "error"
)

const maxToasts = 50

// Toast is one user-facing notification.
type Toast struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ToastQueue collects notifications until the next board response drains
// them. It implements raffle.Notifier.
type ToastQueue struct {
	mu    sync.Mutex
	items []Toast
}

func (q *ToastQueue) push(level, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, Toast{Level: level, Message: msg, At: time.Now()})
	if len(q.items) > maxToasts {
		q.items = q.items[len(q.items)-maxToasts:]
	}
}

func (q *ToastQueue) Success(msg string) { q.push(ToastSuccess, msg) }

func (q *ToastQueue) Warning(msg string) { q.push(ToastWarning, msg) }

func (q *ToastQueue) Error(msg string) { q.push(ToastError, msg) }

// Drain returns and clears the pending toasts.
func (q *ToastQueue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	if out == nil {
		out = []Toast{}
	}
	return out
}
