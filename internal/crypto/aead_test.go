package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromSecret(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, 32)
	k, err := KeyFromSecret(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, k[:])

	k1, err := KeyFromSecret("correct horse battery staple")
	require.NoError(t, err)
	k2, err := KeyFromSecret("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	_, err = KeyFromSecret("")
	assert.Error(t, err)
}

func TestSealer_RoundTrip(t *testing.T) {
	k, err := KeyFromSecret("passphrase")
	require.NoError(t, err)
	s, err := NewSealer(k)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"refresh_token":"r"}`), "drive")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "refresh_token")

	pt, err := s.Open(sealed, "drive")
	require.NoError(t, err)
	assert.Equal(t, `{"refresh_token":"r"}`, string(pt))

	_, err = s.Open(sealed, "other")
	assert.Error(t, err, "label mismatch must fail")

	_, err = s.Open(sealed[:4], "drive")
	assert.Error(t, err)
}
