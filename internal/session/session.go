// Package session holds the explicit session object handed to the raffle
// gateway and the store that persists it between requests.
package session

import (
	"sync"
	"time"

	"raffle-storefront/internal/model"
)

// Session is the live session of one logged-in actor. It is the token
// source of every gateway call made on the actor's behalf; once closed it
// yields no token and calls fail with gateway.ErrNoSession.
type Session struct {
	mu     sync.RWMutex
	token  string
	data   model.SessionData
	closed bool
}

// New wraps stored session data. token is the storefront session token.
func New(token string, data model.SessionData) *Session {
	return &Session{token: token, data: data}
}

// Token returns the remote bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ""
	}
	return s.data.RemoteToken
}

// StorefrontToken returns the token the client presents to the storefront.
func (s *Session) StorefrontToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ActorID returns the remote user id of the actor.
func (s *Session) ActorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ActorID
}

// Data returns a copy of the session data.
func (s *Session) Data() model.SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Rotate swaps in a refreshed remote token.
func (s *Session) Rotate(remoteToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RemoteToken = remoteToken
	s.data.RotatedAt = time.Now()
}

// Adopt takes the remote token and expiry from a newer stored copy of the
// session, for instance one rotated by another instance.
func (s *Session) Adopt(stored model.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || stored.ID != s.data.ID {
		return
	}
	s.data.RemoteToken = stored.RemoteToken
	s.data.RotatedAt = stored.RotatedAt
	s.data.ExpiresAt = stored.ExpiresAt
}

// Expired reports whether the session outlived its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.data.ExpiresAt.IsZero() && now.After(s.data.ExpiresAt)
}

// Close tears the session down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data.RemoteToken = ""
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
