package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"raffle-storefront/internal/gateway"
	"raffle-storefront/internal/session"
)

// Authenticator is the login surface of the raffle service.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*gateway.LoginResult, error)
	RefreshToken(ctx context.Context, token string) (string, error)
}

// APIFactory binds the raffle service to one session's token.
type APIFactory func(src gateway.TokenSource) RaffleAPI

// StorefrontConfig wires a Storefront.
type StorefrontConfig struct {
	Auth           Authenticator
	APIFor         APIFactory
	Sessions       *session.Store
	Journal        *ActivityService
	RequestID      RequestIDFunc
	CloseDelay     time.Duration
	MaxConcurrency int
}

// Storefront owns the live sessions and their boards.
type Storefront struct {
	cfg StorefrontConfig

	mu     sync.Mutex
	live   map[string]*session.Session // by session id
	boards map[string]*Board           // by session id + raffle id
}

// NewStorefront creates a storefront service.
func NewStorefront(cfg StorefrontConfig) *Storefront {
	return &Storefront{
		cfg:    cfg,
		live:   make(map[string]*session.Session),
		boards: make(map[string]*Board),
	}
}

func boardKey(sessionID, raffleID string) string {
	return sessionID + "/" + raffleID
}

// Login authenticates against the raffle service and opens a session.
func (s *Storefront) Login(ctx context.Context, email, password string) (*session.Session, error) {
	res, err := s.cfg.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	name := res.User.Name
	if name == "" {
		name = email
	}
	sess, err := s.cfg.Sessions.Create(ctx, res.User.ID, name, res.Token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.live[sess.Data().ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Session resolves a storefront token to its live session. The live object
// picks up the stored remote token on every resolve; a session the store no
// longer knows is evicted together with its boards.
func (s *Storefront) Session(ctx context.Context, token string) (*session.Session, error) {
	stored, err := s.cfg.Sessions.Get(ctx, token)
	if errors.Is(err, session.ErrSessionNotFound) {
		s.evictToken(token)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	data := stored.Data()
	s.mu.Lock()
	defer s.mu.Unlock()

	if live, ok := s.live[data.ID]; ok && !live.Closed() {
		live.Adopt(data)
		return live, nil
	}
	s.live[data.ID] = stored
	return stored, nil
}

func (s *Storefront) evictToken(token string) {
	s.mu.Lock()
	id := ""
	for sid, sess := range s.live {
		if sess.StorefrontToken() == token {
			id = sid
			break
		}
	}
	s.mu.Unlock()

	if id != "" {
		s.evict(id)
	}
}

// evict drops a session and closes its boards. It reports the number of
// boards closed.
func (s *Storefront) evict(id string) int {
	s.mu.Lock()
	sess := s.live[id]
	delete(s.live, id)
	var closing []*Board
	for key, b := range s.boards {
		if strings.HasPrefix(key, id+"/") {
			closing = append(closing, b)
			delete(s.boards, key)
		}
	}
	s.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	for _, b := range closing {
		b.Close()
	}
	return len(closing)
}

// SweepExpired evicts every live session whose expiry has passed and
// returns how many were evicted.
func (s *Storefront) SweepExpired(now time.Time) int {
	s.mu.Lock()
	var expired []string
	for id, sess := range s.live {
		if sess.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	boards := 0
	for _, id := range expired {
		boards += s.evict(id)
	}
	if len(expired) > 0 {
		log.Printf("[Storefront] Swept %d expired sessions, %d boards closed", len(expired), boards)
	}
	return len(expired)
}

// Refresh rotates the session's remote token.
func (s *Storefront) Refresh(ctx context.Context, sess *session.Session) error {
	next, err := s.cfg.Auth.RefreshToken(ctx, sess.Token())
	if err != nil {
		return err
	}
	sess.Rotate(next)
	if err := s.cfg.Sessions.Save(ctx, sess); err != nil {
		return err
	}
	log.Printf("[Storefront] Rotated remote token for session %s", sess.Data().ID)
	return nil
}

// Logout tears the session and its boards down.
func (s *Storefront) Logout(ctx context.Context, sess *session.Session) error {
	id := sess.Data().ID
	sess.Close()
	closed := s.evict(id)

	if err := s.cfg.Sessions.Delete(ctx, sess.StorefrontToken()); err != nil {
		return err
	}
	log.Printf("[Storefront] Session %s logged out, %d boards closed", id, closed)
	return nil
}

// Board returns the session's board of raffleID, loading it on first use.
func (s *Storefront) Board(ctx context.Context, sess *session.Session, raffleID string) (*Board, error) {
	key := boardKey(sess.Data().ID, raffleID)

	s.mu.Lock()
	b, ok := s.boards[key]
	s.mu.Unlock()
	if ok {
		return b, nil
	}

	b = NewBoard(BoardConfig{
		RaffleID:       raffleID,
		ActorID:        sess.ActorID(),
		API:            s.cfg.APIFor(sess),
		Journal:        s.cfg.Journal,
		RequestID:      s.cfg.RequestID,
		CloseDelay:     s.cfg.CloseDelay,
		MaxConcurrency: s.cfg.MaxConcurrency,
	})
	if err := b.Refresh(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to load raffle %s: %w", raffleID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Closed() {
		b.Close()
		return nil, gateway.ErrNoSession
	}
	if existing, ok := s.boards[key]; ok {
		b.Close()
		return existing, nil
	}
	s.boards[key] = b
	return b, nil
}

// LoadedBoard returns an already loaded board without fetching.
func (s *Storefront) LoadedBoard(sess *session.Session, raffleID string) (*Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[boardKey(sess.Data().ID, raffleID)]
	return b, ok
}

// Stats reports live sessions and boards.
func (s *Storefront) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"live_sessions": len(s.live),
		"open_boards":   len(s.boards),
	}
}

// Close releases every board.
func (s *Storefront) Close() {
	s.mu.Lock()
	boards := s.boards
	s.boards = make(map[string]*Board)
	s.mu.Unlock()

	for _, b := range boards {
		b.Close()
	}
}
