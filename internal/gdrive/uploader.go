package gdrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Uploader streams local files to Google Drive with resumable chunked uploads and
// shares them with anyone holding the link.
type Uploader struct {
	svc       *drive.Service
	chunkSize int
	logger    *slog.Logger
}

// NewUploader builds a Drive client. Extra options are appended after the token source
// (tests pass option.WithEndpoint / option.WithHTTPClient).
func NewUploader(ctx context.Context, ts oauth2.TokenSource, chunkSize int, logger *slog.Logger, opts ...option.ClientOption) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	all := opts
	if ts != nil {
		all = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	}
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("drive.NewService: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = googleapi.DefaultUploadChunkSize
	}
	return &Uploader{svc: svc, chunkSize: chunkSize, logger: logger}, nil
}

func (u *Uploader) Name() string { return "Google Drive" }

// Upload creates fileName in Drive from localPath, grants anyone-with-link read access and
// returns the file's view URL.
func (u *Uploader) Upload(ctx context.Context, localPath, fileName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fileName, err)
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	lastPct := -1
	progress := func(current, total int64) {
		if total <= 0 {
			total = size
		}
		if total <= 0 {
			return
		}
		pct := int(current * 100 / total)
		if pct != lastPct {
			lastPct = pct
			u.logger.Info("drive upload progress", "file_name", fileName, "percent", pct)
		}
	}

	created, err := u.svc.Files.Create(&drive.File{Name: fileName}).
		Media(f, googleapi.ChunkSize(u.chunkSize)).
		ProgressUpdater(progress).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive create %s: %w", fileName, err)
	}
	if created.Id == "" {
		return "", errors.New("drive create returned empty file id")
	}
	u.logger.Info("file uploaded to drive", "file_name", fileName, "file_id", created.Id, "bytes", size)

	_, err = u.svc.Permissions.Create(created.Id, &drive.Permission{Role: "reader", Type: "anyone"}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive share %s: %w", created.Id, err)
	}
	return ViewURL(created.Id), nil
}

// ViewURL is the canonical browser link for a Drive file id.
func ViewURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}
