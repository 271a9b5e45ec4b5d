package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"megaup-drive-bot/internal/security"
)

var ErrInvalidFileName = errors.New("invalid file name")

// Redirect hops are not re-validated, so the tools follow at most this many.
const maxRedirects = "5"

// ExecFunc runs the download tool with an argument list (never through a shell).
type ExecFunc func(ctx context.Context, name string, args ...string) error

// Downloader fetches a URL into Dir/<fileName> with an external tool (wget or curl).
// An existing file of the same name is returned as-is without touching the network.
type Downloader struct {
	Dir     string
	Tool    string
	Timeout time.Duration
	Logger  *slog.Logger

	// Optional overrides, mostly for tests.
	Exec     ExecFunc
	Validate func(string) (string, error)
}

func NewDownloader(dir, tool string, timeout time.Duration, logger *slog.Logger) *Downloader {
	return &Downloader{
		Dir:     dir,
		Tool:    tool,
		Timeout: timeout,
		Logger:  logger,
	}
}

// EnsureDir creates the download directory if absent.
func (d *Downloader) EnsureDir() error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir download dir: %w", err)
	}
	return nil
}

// Path returns where fileName lives in the download directory.
func (d *Downloader) Path(fileName string) string {
	return filepath.Join(d.Dir, fileName)
}

// Fetch downloads rawURL to the download directory as fileName and returns the local path.
// The tool writes to a unique partial file which is renamed into place only when the tool
// exits successfully; on failure the partial file is removed.
func (d *Downloader) Fetch(ctx context.Context, rawURL, fileName string) (string, error) {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	if fileName == "" || fileName != filepath.Base(fileName) || fileName == "." || fileName == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	dst := d.Path(fileName)

	if _, err := os.Stat(dst); err == nil {
		log.Info("file already exists, skipping download", "file_name", fileName)
		return dst, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", fileName, err)
	}

	validate := d.Validate
	if validate == nil {
		validate = security.ValidateDownloadURL
	}
	target, err := validate(rawURL)
	if err != nil {
		return "", fmt.Errorf("rejected url: %w", err)
	}

	if err := d.EnsureDir(); err != nil {
		return "", err
	}
	part := dst + "." + uuid.NewString() + ".part"

	name, args, err := d.command(target, part)
	if err != nil {
		return "", err
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	start := time.Now()
	log.Info("download started", "file_name", fileName, "tool", name)
	run := d.Exec
	if run == nil {
		run = runCommand
	}
	if err := run(ctx, name, args...); err != nil {
		_ = os.Remove(part)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("download %s: %w", fileName, ctxErr)
		}
		return "", fmt.Errorf("download %s: %w", fileName, err)
	}
	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("move download into place: %w", err)
	}
	log.Info("download finished", "file_name", fileName, "elapsed", time.Since(start).Round(time.Millisecond))
	return dst, nil
}

func (d *Downloader) command(target, out string) (string, []string, error) {
	switch strings.ToLower(d.Tool) {
	case "", "wget":
		return "wget", []string{"-q", "--max-redirect=" + maxRedirects, "-O", out, "--", target}, nil
	case "curl":
		return "curl", []string{"-fsSL", "--max-redirs", maxRedirects, "--proto", "=http,https", "--proto-redir", "=http,https", "-o", out, "--", target}, nil
	default:
		return "", nil, fmt.Errorf("unsupported download tool %q", d.Tool)
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := truncate(strings.TrimSpace(stderr.String()), 300)
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
