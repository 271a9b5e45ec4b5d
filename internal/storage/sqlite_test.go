package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"megaup-drive-bot/internal/gdrive"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bot.sqlite")
	s, err := Open(context.Background(), path, "test-master-key")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Get(ctx, "drive_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "drive_token", []byte("v1")))
	require.NoError(t, s.Put(ctx, "drive_token", []byte("v2")))

	got, err := s.Get(ctx, "drive_token")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestStore_SealedAtRest(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Put(ctx, "drive_token", []byte("super-secret-refresh-token")))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "super-secret-refresh-token"))

	// Reopening with a different key cannot decrypt.
	other, err := Open(ctx, path, "another-key")
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Get(ctx, "drive_token")
	assert.Error(t, err)
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	ts := TokenStore{Store: s, Name: "drive_token"}

	_, err := ts.Load(ctx)
	assert.ErrorIs(t, err, gdrive.ErrNoToken)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ts.Save(ctx, &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: exp}))

	tok, err := ts.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
	assert.True(t, exp.Equal(tok.Expiry))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), "", "k")
	assert.Error(t, err)
	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "x.sqlite"), "")
	assert.Error(t, err)
}
