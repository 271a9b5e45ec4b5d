package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"megaup-drive-bot/internal/config"
)

// Uploader puts files into an S3-compatible bucket and returns a presigned GET link.
type Uploader struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *slog.Logger
}

// New connects to the bucket and creates it if missing.
func New(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	expiry := cfg.LinkExpiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &Uploader{client: cli, bucket: cfg.Bucket, expiry: expiry, logger: logger}, nil
}

func (u *Uploader) Name() string { return "S3 storage" }

func (u *Uploader) Upload(ctx context.Context, localPath, fileName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fileName, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", fileName, err)
	}

	_, err = u.client.PutObject(ctx, u.bucket, fileName, f, st.Size(), minio.PutObjectOptions{
		ContentType: contentType(fileName),
		Progress:    newProgressLogger(u.logger, fileName, st.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", fileName, err)
	}

	link, err := u.client.PresignedGetObject(ctx, u.bucket, fileName, u.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", fileName, err)
	}
	u.logger.Info("file uploaded to bucket", "file_name", fileName, "bucket", u.bucket, "bytes", st.Size())
	return link.String(), nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// progressLogger is handed to minio as PutObjectOptions.Progress; minio reads
// len(p) bytes from it for every chunk it sends.
type progressLogger struct {
	logger  *slog.Logger
	name    string
	total   int64
	sent    int64
	lastPct int
}

func newProgressLogger(logger *slog.Logger, name string, total int64) *progressLogger {
	return &progressLogger{logger: logger, name: name, total: total, lastPct: -1}
}

func (p *progressLogger) Read(b []byte) (int, error) {
	p.sent += int64(len(b))
	if p.total > 0 {
		pct := int(p.sent * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct/10 != p.lastPct/10 || (pct == 100 && p.lastPct != 100) {
			p.lastPct = pct
			p.logger.Info("s3 upload progress", "file_name", p.name, "percent", pct)
		}
	}
	return len(b), nil
}
