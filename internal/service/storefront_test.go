package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"raffle-storefront/internal/cache"
	"raffle-storefront/internal/gateway"
	"raffle-storefront/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*gateway.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*gateway.LoginResult)
	return res, args.Error(1)
}

func (m *mockAuth) RefreshToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func loginResult(token, id, name string) *gateway.LoginResult {
	res := &gateway.LoginResult{Token: token}
	res.User.ID = id
	res.User.Name = name
	return res
}

func newTestStorefront(t *testing.T, auth Authenticator, api RaffleAPI) *Storefront {
	t.Helper()
	return newTestStorefrontWithTTL(t, auth, api, time.Hour)
}

func newTestStorefrontWithTTL(t *testing.T, auth Authenticator, api RaffleAPI, ttl time.Duration) *Storefront {
	t.Helper()
	c := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { c.Close() })

	sf := NewStorefront(StorefrontConfig{
		Auth:           auth,
		APIFor:         func(gateway.TokenSource) RaffleAPI { return api },
		Sessions:       session.NewStore(c, ttl),
		CloseDelay:     time.Hour,
		MaxConcurrency: 2,
	})
	t.Cleanup(sf.Close)
	return sf
}

func TestStorefrontLoginAndResolve(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, "ana@example.com", "secret").Return(loginResult("remote-1", "buyer", "Ana"), nil)
	sf := newTestStorefront(t, auth, nil)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "buyer", sess.ActorID())
	assert.Equal(t, "remote-1", sess.Token())

	resolved, err := sf.Session(ctx, sess.StorefrontToken())
	require.NoError(t, err)
	assert.Same(t, sess, resolved)
}

func TestStorefrontLoginFailure(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, "ana@example.com", "bad").
		Return(nil, &gateway.Error{StatusCode: 401, Message: "invalid credentials"})
	sf := newTestStorefront(t, auth, nil)

	_, err := sf.Login(context.Background(), "ana@example.com", "bad")
	assert.True(t, errors.Is(err, gateway.ErrUnauthorized))
	assert.EqualError(t, err, "invalid credentials")
}

func TestStorefrontRefreshRotatesToken(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	auth.On("RefreshToken", mock.Anything, "remote-1").Return("remote-2", nil).Once()
	sf := newTestStorefront(t, auth, nil)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, sf.Refresh(ctx, sess))
	assert.Equal(t, "remote-2", sess.Token())

	stored, err := sf.cfg.Sessions.Get(ctx, sess.StorefrontToken())
	require.NoError(t, err)
	assert.Equal(t, "remote-2", stored.Token())
	auth.AssertExpectations(t)
}

func TestStorefrontBoardIsCachedPerSession(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	api := newFakeRaffleService("buyer", sampleRaffle(true), sampleNumbers()...)
	sf := newTestStorefront(t, auth, api)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	first, err := sf.Board(ctx, sess, "r1")
	require.NoError(t, err)
	second, err := sf.Board(ctx, sess, "r1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, api.count("list"))

	loaded, ok := sf.LoadedBoard(sess, "r1")
	assert.True(t, ok)
	assert.Same(t, first, loaded)
	assert.Equal(t, 1, sf.Stats()["open_boards"])
}

func TestStorefrontLogoutTearsDown(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	api := newFakeRaffleService("buyer", sampleRaffle(true), sampleNumbers()...)
	sf := newTestStorefront(t, auth, api)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	_, err = sf.Board(ctx, sess, "r1")
	require.NoError(t, err)

	require.NoError(t, sf.Logout(ctx, sess))

	assert.Empty(t, sess.Token())
	_, ok := sf.LoadedBoard(sess, "r1")
	assert.False(t, ok)

	_, err = sf.Session(ctx, sess.StorefrontToken())
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStorefrontExpiredSessionReleasesBoards(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	api := newFakeRaffleService("buyer", sampleRaffle(true), sampleNumbers()...)
	sf := newTestStorefrontWithTTL(t, auth, api, 50*time.Millisecond)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	_, err = sf.Board(ctx, sess, "r1")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = sf.Session(ctx, sess.StorefrontToken())
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 0, sf.Stats()["live_sessions"])
	assert.Equal(t, 0, sf.Stats()["open_boards"])
	assert.True(t, sess.Closed())
}

func TestStorefrontSweepExpired(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	api := newFakeRaffleService("buyer", sampleRaffle(true), sampleNumbers()...)
	sf := newTestStorefrontWithTTL(t, auth, api, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sess, err := sf.Login(ctx, "ana@example.com", "secret")
		require.NoError(t, err)
		_, err = sf.Board(ctx, sess, "r1")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, sf.Stats()["open_boards"])

	assert.Equal(t, 0, sf.SweepExpired(time.Now()))
	assert.Equal(t, 5, sf.SweepExpired(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, sf.Stats()["live_sessions"])
	assert.Equal(t, 0, sf.Stats()["open_boards"])
}

func TestStorefrontSessionAdoptsStoredToken(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	sf := newTestStorefront(t, auth, nil)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	// Rotation performed through the shared store by another instance.
	other, err := sf.cfg.Sessions.Get(ctx, sess.StorefrontToken())
	require.NoError(t, err)
	other.Rotate("remote-9")
	require.NoError(t, sf.cfg.Sessions.Save(ctx, other))

	resolved, err := sf.Session(ctx, sess.StorefrontToken())
	require.NoError(t, err)
	assert.Same(t, sess, resolved)
	assert.Equal(t, "remote-9", sess.Token())
}

func TestStorefrontBoardRefusesClosedSession(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(loginResult("remote-1", "buyer", "Ana"), nil)
	api := newFakeRaffleService("buyer", sampleRaffle(true), sampleNumbers()...)
	sf := newTestStorefront(t, auth, api)
	ctx := context.Background()

	sess, err := sf.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	sess.Close()

	_, err = sf.Board(ctx, sess, "r1")
	assert.Error(t, err)
	assert.Equal(t, 0, sf.Stats()["open_boards"])
}
