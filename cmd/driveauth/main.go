// Command driveauth runs the one-time Google OAuth consent flow and prints a TOKEN_JSON value.
// With -save and CREDENTIALS_MASTER_KEY set, the token is also written to the bot's credential store.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/oauth2"

	"megaup-drive-bot/internal/gdrive"
	"megaup-drive-bot/internal/storage"
)

func main() {
	var (
		credentials = flag.String("credentials", os.Getenv("CREDENTIALS_JSON"), "OAuth client JSON (or env CREDENTIALS_JSON)")
		save        = flag.Bool("save", false, "Also store the token in the credential database")
		dbPath      = flag.String("db", envOr("DB_PATH", "./data/bot.sqlite"), "Credential database path (or env DB_PATH)")
	)
	flag.Parse()

	if strings.TrimSpace(*credentials) == "" {
		fatal(errors.New("missing -credentials / CREDENTIALS_JSON"))
	}
	cfg, err := gdrive.ClientConfig(*credentials)
	if err != nil {
		fatal(err)
	}
	if cfg.RedirectURL == "" || strings.HasPrefix(cfg.RedirectURL, "urn:") {
		cfg.RedirectURL = "http://localhost"
	}

	fmt.Fprintln(os.Stderr, "Open this URL and grant access:")
	fmt.Fprintln(os.Stderr, cfg.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Fprintln(os.Stderr, "The browser is sent to "+cfg.RedirectURL+"?code=...; the page will not load.")
	fmt.Fprint(os.Stderr, "Paste the code parameter (or the whole redirected URL): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		fatal(fmt.Errorf("read code: %w", err))
	}
	code := authCode(line)
	if code == "" {
		fatal(errors.New("no authorization code found in input"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		fatal(fmt.Errorf("exchange code: %w", err))
	}

	out, err := gdrive.FormatToken(cfg, tok)
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))

	if *save {
		key := strings.TrimSpace(os.Getenv("CREDENTIALS_MASTER_KEY"))
		if key == "" {
			fatal(errors.New("-save needs CREDENTIALS_MASTER_KEY"))
		}
		db, err := storage.Open(ctx, *dbPath, key)
		if err != nil {
			fatal(err)
		}
		defer db.Close()
		if err := (storage.TokenStore{Store: db, Name: storage.DriveTokenName}).Save(ctx, tok); err != nil {
			fatal(err)
		}
		fmt.Fprintln(os.Stderr, "token stored in", *dbPath)
	}
}

// authCode accepts either a bare code or the redirected URL carrying ?code=.
func authCode(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "://") {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return ""
	}
	return u.Query().Get("code")
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}
