package bookhive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bookhive"
)

type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStore) Set(context.Context, string, string) error   { return f.err }
func (f failingStore) Delete(context.Context, string) error        { return f.err }

func TestSessionBeginAndEnd(t *testing.T) {
	ctx := context.Background()
	store := bookhive.NewMemoryTokenStore()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	session := bookhive.NewSession(store, bookhive.WithSessionClock(func() time.Time { return now }))
	assert.False(t, session.Active(ctx))
	assert.Equal(t, bookhive.DefaultTokenKey, session.Key())

	require.NoError(t, session.Begin(ctx, " tok-1 "))
	assert.True(t, session.Active(ctx))
	assert.Equal(t, now, session.BeganAt())

	stored, err := store.Get(ctx, bookhive.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)

	require.NoError(t, session.End(ctx))
	assert.False(t, session.Active(ctx))
	assert.True(t, session.BeganAt().IsZero())

	stored, err = store.Get(ctx, bookhive.DefaultTokenKey)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSessionBeginRejectsEmptyToken(t *testing.T) {
	session := bookhive.NewSession(nil)

	err := session.Begin(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, bookhive.IsValidation(err))
}

func TestSessionLoadsPersistedToken(t *testing.T) {
	ctx := context.Background()
	store := bookhive.NewMemoryTokenStore()
	require.NoError(t, store.Set(ctx, "custom", "persisted"))

	session := bookhive.NewSession(store, bookhive.WithTokenKey("custom"))

	token, err := session.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
}

func TestSessionReloadPicksUpExternalChanges(t *testing.T) {
	ctx := context.Background()
	store := bookhive.NewMemoryTokenStore()

	first := bookhive.NewSession(store)
	second := bookhive.NewSession(store)

	require.NoError(t, first.Begin(ctx, "shared"))

	token, err := second.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared", token)

	require.NoError(t, first.End(ctx))

	token, err = second.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared", token, "cached until reload")

	second.Reload()
	assert.False(t, second.Active(ctx))
}

func TestSessionIdentity(t *testing.T) {
	ctx := context.Background()
	session := bookhive.NewSession(nil)

	_, ok := session.Identity(ctx)
	assert.False(t, ok)

	token := signedToken(t, jwt.MapClaims{"username": "alice", "email": "alice@example.com", "id": 1})
	require.NoError(t, session.Begin(ctx, token))

	identity, ok := session.Identity(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", identity.Username)

	require.NoError(t, session.Begin(ctx, "opaque-token"))
	_, ok = session.Identity(ctx)
	assert.False(t, ok)
	assert.True(t, session.Active(ctx))
}

func TestSessionStoreFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	session := bookhive.NewSession(failingStore{err: boom})

	assert.ErrorIs(t, session.Begin(ctx, "tok"), boom)
	assert.False(t, session.Active(ctx))

	_, err := session.Token(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestMemoryTokenStoreHonorsContext(t *testing.T) {
	store := bookhive.NewMemoryTokenStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", "v"), context.Canceled)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
