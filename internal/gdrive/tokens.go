package gdrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrNoToken means no OAuth token is available; run cmd/driveauth to create one.
var ErrNoToken = errors.New("no drive token stored")

// TokenStore loads and saves the Drive OAuth token.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// MemoryTokenStore keeps the token in process memory only; it is lost on restart.
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

func (m *MemoryTokenStore) Load(context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, ErrNoToken
	}
	cp := *m.tok
	return &cp, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	cp := *tok
	m.mu.Lock()
	m.tok = &cp
	m.mu.Unlock()
	return nil
}

// ClientConfig parses CREDENTIALS_JSON (the "installed" or "web" client file from the Google console).
func ClientConfig(credentialsJSON string) (*oauth2.Config, error) {
	cfg, err := google.ConfigFromJSON([]byte(credentialsJSON), drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive client config: %w", err)
	}
	return cfg, nil
}

// authorizedUser is the TOKEN_JSON layout: Google's "authorized user" file.
// access_token is accepted as an alias of token so a plain oauth2.Token JSON also parses.
type authorizedUser struct {
	Token        string   `json:"token,omitempty"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseToken parses TOKEN_JSON. Expiry timestamps without a zone are UTC.
func ParseToken(tokenJSON string) (*oauth2.Token, error) {
	var au authorizedUser
	if err := json.Unmarshal([]byte(tokenJSON), &au); err != nil {
		return nil, fmt.Errorf("parse drive token: %w", err)
	}
	access := au.Token
	if access == "" {
		access = au.AccessToken
	}
	if access == "" && au.RefreshToken == "" {
		return nil, errors.New("drive token has neither access nor refresh token")
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: au.RefreshToken, TokenType: "Bearer"}
	if s := strings.TrimSpace(au.Expiry); s != "" {
		var parsed bool
		for _, layout := range expiryLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				tok.Expiry = t.UTC()
				parsed = true
				break
			}
		}
		if !parsed {
			return nil, fmt.Errorf("parse drive token expiry %q", s)
		}
	}
	return tok, nil
}

// FormatToken renders tok in the TOKEN_JSON layout for operators.
func FormatToken(cfg *oauth2.Config, tok *oauth2.Token) ([]byte, error) {
	au := authorizedUser{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if cfg != nil {
		au.TokenURI = cfg.Endpoint.TokenURL
		au.ClientID = cfg.ClientID
		au.ClientSecret = cfg.ClientSecret
		au.Scopes = cfg.Scopes
	}
	if !tok.Expiry.IsZero() {
		au.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}
	return json.Marshal(au)
}

// Seed stores tok unless the store already holds a token with the same refresh token.
// It reports whether the store was written.
func Seed(ctx context.Context, store TokenStore, tok *oauth2.Token) (bool, error) {
	if tok == nil {
		return false, nil
	}
	cur, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoToken):
	case err != nil:
		return false, err
	case tok.RefreshToken == "" || cur.RefreshToken == tok.RefreshToken:
		return false, nil
	}
	if err := store.Save(ctx, tok); err != nil {
		return false, err
	}
	return true, nil
}

// StoreTokenSource hands out Drive tokens, refreshing through cfg and writing every new
// access token back to the store. A mutex serialises load, refresh and save.
type StoreTokenSource struct {
	ctx    context.Context
	cfg    *oauth2.Config
	store  TokenStore
	logger *slog.Logger

	mu   sync.Mutex
	src  oauth2.TokenSource
	last string
}

func NewStoreTokenSource(ctx context.Context, cfg *oauth2.Config, store TokenStore, logger *slog.Logger) *StoreTokenSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreTokenSource{ctx: ctx, cfg: cfg, store: store, logger: logger}
}

func (s *StoreTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		tok, err := s.store.Load(s.ctx)
		if err != nil {
			return nil, err
		}
		s.src = s.cfg.TokenSource(s.ctx, tok)
		s.last = tok.AccessToken
	}

	tok, err := s.src.Token()
	if err != nil {
		// Reload from the store next time; an operator may have written a fresh token.
		s.src = nil
		return nil, fmt.Errorf("refresh drive token: %w", err)
	}
	if tok.AccessToken != s.last {
		if err := s.store.Save(s.ctx, tok); err != nil {
			s.logger.Warn("failed to persist refreshed drive token", "err", err)
		} else {
			s.logger.Info("drive token refreshed", "expiry", tok.Expiry.UTC().Format(time.RFC3339))
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
