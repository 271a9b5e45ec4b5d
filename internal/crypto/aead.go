package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Key is a 32-byte AES-256 key.
type Key [32]byte

// KeyFromSecret accepts either base64 of exactly 32 bytes or an arbitrary passphrase (hashed with SHA-256).
func KeyFromSecret(secret string) (Key, error) {
	var k Key
	if secret == "" {
		return Key{}, errors.New("empty master key")
	}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == len(k) {
		copy(k[:], raw)
		return k, nil
	}
	sum := sha256.Sum256([]byte(secret))
	copy(k[:], sum[:])
	return k, nil
}

// Sealer encrypts small blobs (OAuth tokens) with AES-GCM.
// Sealed output is nonce || ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key Key) (*Sealer, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	a, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Sealer{aead: a}, nil
}

// Seal binds the ciphertext to label so a sealed blob cannot be swapped between rows.
func (s *Sealer) Seal(plaintext []byte, label string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(label)), nil
}

func (s *Sealer) Open(sealed []byte, label string) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, errors.New("sealed blob too short")
	}
	pt, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(label))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return pt, nil
}
