package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Upload backends.
const (
	BackendNone  = "none"
	BackendDrive = "drive"
	BackendS3    = "s3"
)

type Config struct {
	ListenAddr string
	LogLevel   slog.Level

	TelegramBotToken      string
	PublicBaseURL         string
	TelegramWebhookSecret string
	TelegramDebug         bool

	LinkMarker      string
	DownloadDir     string
	DownloadTool    string
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration
	MaxJobs         int

	UploadBackend   string
	UploadChunkSize int

	// Drive OAuth client config and seed token, both inline JSON.
	DriveCredentialsJSON string
	DriveTokenJSON       string

	DBPath               string
	CredentialsMasterKey string

	S3 S3Config
}

type S3Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	LinkExpiry time.Duration
}

func FromEnv() (Config, error) {
	var cfg Config

	cfg.ListenAddr = net.JoinHostPort("0.0.0.0", envString("PORT", "8080"))
	cfg.PublicBaseURL = strings.TrimSuffix(envString("RAILWAY_URL", ""), "/")
	cfg.TelegramWebhookSecret = envString("TELEGRAM_WEBHOOK_SECRET", "")
	cfg.TelegramDebug = envBool("TELEGRAM_DEBUG", false)

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if cfg.TelegramBotToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envString("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg.LinkMarker = envString("LINK_MARKER", "megaup.net")
	cfg.DownloadDir = envString("DOWNLOAD_DIR", "downloads")
	cfg.DownloadTool = strings.ToLower(envString("DOWNLOAD_TOOL", "wget"))
	cfg.DownloadTimeout = envDuration("DOWNLOAD_TIMEOUT", 30*time.Minute)
	cfg.UploadTimeout = envDuration("UPLOAD_TIMEOUT", 30*time.Minute)
	cfg.MaxJobs = envInt("MAX_CONCURRENT_JOBS", 2)

	cfg.DriveCredentialsJSON = envString("CREDENTIALS_JSON", "")
	cfg.DriveTokenJSON = envString("TOKEN_JSON", "")
	cfg.UploadChunkSize = envInt("UPLOAD_CHUNK_SIZE", 8<<20)

	defBackend := BackendNone
	if cfg.DriveCredentialsJSON != "" {
		defBackend = BackendDrive
	}
	cfg.UploadBackend = strings.ToLower(envString("UPLOAD_BACKEND", defBackend))

	cfg.DBPath = envString("DB_PATH", "./data/bot.sqlite")
	cfg.CredentialsMasterKey = strings.TrimSpace(os.Getenv("CREDENTIALS_MASTER_KEY"))

	cfg.S3 = S3Config{
		Endpoint:   envString("S3_ENDPOINT", ""),
		AccessKey:  envString("S3_ACCESS_KEY", ""),
		SecretKey:  envString("S3_SECRET_KEY", ""),
		Bucket:     envString("S3_BUCKET", ""),
		UseSSL:     envBool("S3_USE_SSL", true),
		LinkExpiry: envDuration("S3_LINK_EXPIRY", 7*24*time.Hour),
	}

	return cfg, nil
}

// WebhookPath is the route the webhook is served on. The token doubles as an unguessable path secret.
func (c Config) WebhookPath() string {
	return "/" + c.TelegramBotToken
}

// WebhookURL is the public URL registered with Telegram, or "" when no public base URL is configured.
func (c Config) WebhookURL() string {
	if c.PublicBaseURL == "" {
		return ""
	}
	return c.PublicBaseURL + c.WebhookPath()
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func (c Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errors.New("telegram bot token is empty")
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("RAILWAY_URL must be an https:// base url: %q", c.PublicBaseURL)
		}
	}
	if strings.TrimSpace(c.LinkMarker) == "" {
		return errors.New("LINK_MARKER must not be empty")
	}
	switch c.DownloadTool {
	case "wget", "curl":
	default:
		return fmt.Errorf("DOWNLOAD_TOOL must be wget or curl: %q", c.DownloadTool)
	}
	if c.DownloadTimeout <= 0 || c.UploadTimeout <= 0 {
		return errors.New("DOWNLOAD_TIMEOUT and UPLOAD_TIMEOUT must be positive")
	}
	if c.MaxJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be >= 1: %d", c.MaxJobs)
	}

	switch c.UploadBackend {
	case BackendNone:
	case BackendDrive:
		if c.DriveCredentialsJSON == "" {
			return errors.New("CREDENTIALS_JSON is required for the drive upload backend")
		}
		if c.UploadChunkSize <= 0 {
			return fmt.Errorf("UPLOAD_CHUNK_SIZE must be positive: %d", c.UploadChunkSize)
		}
	case BackendS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return errors.New("S3_ENDPOINT and S3_BUCKET are required for the s3 upload backend")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required for the s3 upload backend")
		}
		// Presigned URLs are capped at seven days.
		if c.S3.LinkExpiry <= 0 || c.S3.LinkExpiry > 7*24*time.Hour {
			return fmt.Errorf("S3_LINK_EXPIRY must be within (0, 168h]: %s", c.S3.LinkExpiry)
		}
	default:
		return fmt.Errorf("UPLOAD_BACKEND must be one of none, drive, s3: %q", c.UploadBackend)
	}
	return nil
}
