package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"raffle-storefront/internal/cache"
	"raffle-storefront/internal/model"
	"raffle-storefront/pkg/uid"
)

const (
	// TokenPrefix is the prefix of every storefront session token.
	TokenPrefix = "rsf_"

	// DefaultTTL is used when the store is created without a TTL.
	DefaultTTL = 12 * time.Hour

	keyPrefix = "session:"
)

var (
	ErrInvalidToken    = errors.New("invalid session token format")
	ErrSessionNotFound = errors.New("session not found or expired")
)

// Store persists sessions in a cache keyed by storefront token.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStore creates a session store over c.
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl}
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create starts a new session for a logged-in actor.
func (s *Store) Create(ctx context.Context, actorID, actorName, remoteToken string) (*Session, error) {
	now := time.Now()
	token := uid.NewToken(TokenPrefix)
	data := model.SessionData{
		ID:          uid.New(),
		ActorID:     actorID,
		ActorName:   actorName,
		RemoteToken: remoteToken,
		CreatedAt:   now,
		RotatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.put(ctx, token, data); err != nil {
		return nil, err
	}

	log.Printf("[SessionStore] Created session %s for actor=%s, expires=%v", data.ID, actorID, data.ExpiresAt)
	return New(token, data), nil
}

// Get loads the session behind token.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	if !strings.HasPrefix(token, TokenPrefix) || len(token) == len(TokenPrefix) {
		return nil, ErrInvalidToken
	}

	raw, err := s.cache.Get(ctx, keyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var data model.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}

	if time.Now().After(data.ExpiresAt) {
		_ = s.cache.Delete(ctx, keyPrefix+token)
		return nil, ErrSessionNotFound
	}

	return New(token, data), nil
}

// Save writes back a session after rotation and extends its lifetime.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	sess.data.ExpiresAt = time.Now().Add(s.ttl)
	data := sess.data
	token := sess.token
	sess.mu.Unlock()

	return s.put(ctx, token, data)
}

// Delete removes the session behind token.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.cache.Delete(ctx, keyPrefix+token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, token string, data model.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize session data: %w", err)
	}
	if err := s.cache.Set(ctx, keyPrefix+token, raw, time.Until(data.ExpiresAt)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}
