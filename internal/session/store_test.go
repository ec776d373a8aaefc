package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"raffle-storefront/internal/cache"
	"raffle-storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	c := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { c.Close() })
	return NewStore(c, ttl)
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1", "Ana", "remote-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.StorefrontToken(), TokenPrefix))
	assert.Equal(t, "remote-1", sess.Token())

	loaded, err := store.Get(ctx, sess.StorefrontToken())
	require.NoError(t, err)
	assert.Equal(t, "u-1", loaded.ActorID())
	assert.Equal(t, "Ana", loaded.Data().ActorName)
	assert.Equal(t, "remote-1", loaded.Token())
}

func TestStoreRejectsMalformedToken(t *testing.T) {
	store := newTestStore(t, time.Hour)

	_, err := store.Get(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = store.Get(context.Background(), TokenPrefix)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = store.Get(context.Background(), TokenPrefix+"unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreRotateAndSave(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1", "Ana", "remote-1")
	require.NoError(t, err)

	sess.Rotate("remote-2")
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Get(ctx, sess.StorefrontToken())
	require.NoError(t, err)
	assert.Equal(t, "remote-2", loaded.Token())
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1", "Ana", "remote-1")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, sess.StorefrontToken()))

	_, err = store.Get(ctx, sess.StorefrontToken())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreExpiry(t *testing.T) {
	store := newTestStore(t, 20*time.Millisecond)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1", "Ana", "remote-1")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = store.Get(ctx, sess.StorefrontToken())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClosedSessionYieldsNoToken(t *testing.T) {
	sess := New("rsf_x", sessionData("remote-1"))
	assert.Equal(t, "remote-1", sess.Token())

	sess.Close()
	assert.True(t, sess.Closed())
	assert.Empty(t, sess.Token())
}

func sessionData(remote string) model.SessionData {
	return model.SessionData{ActorID: "u-1", RemoteToken: remote}
}
