package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"megaup-drive-bot/internal/crypto"
	"megaup-drive-bot/internal/gdrive"
)

var ErrNotFound = errors.New("credential not found")

// Store keeps sealed credentials in SQLite.
type Store struct {
	db     *sql.DB
	sealer *crypto.Sealer
}

func Open(ctx context.Context, dbPath string, masterKey string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("db path is empty")
	}
	k, err := crypto.KeyFromSecret(strings.TrimSpace(masterKey))
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.NewSealer(k)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(sqlite): %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, sealer: sealer}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
  name TEXT PRIMARY KEY,
  sealed BLOB NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Get returns the decrypted credential blob stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM credentials WHERE name=?`, name).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.sealer.Open(sealed, name)
}

// Put seals data and upserts it under name.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	sealed, err := s.sealer.Seal(data, name)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO credentials (name, sealed, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET sealed=excluded.sealed, updated_at=excluded.updated_at
`, name, sealed, now)
	return err
}

// DriveTokenName is the credential row holding the Google Drive OAuth token.
const DriveTokenName = "google_drive"

// TokenStore adapts Store to gdrive.TokenStore, keeping one OAuth token under Name.
type TokenStore struct {
	Store *Store
	Name  string
}

var _ gdrive.TokenStore = TokenStore{}

func (t TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	b, err := t.Store.Get(ctx, t.Name)
	if errors.Is(err, ErrNotFound) {
		return nil, gdrive.ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode stored token: %w", err)
	}
	return &tok, nil
}

func (t TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return t.Store.Put(ctx, t.Name, b)
}
