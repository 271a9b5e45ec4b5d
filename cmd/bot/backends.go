package main

import (
	"context"
	"fmt"
	"log/slog"

	"megaup-drive-bot/internal/app"
	"megaup-drive-bot/internal/config"
	"megaup-drive-bot/internal/gdrive"
	"megaup-drive-bot/internal/objstore"
	"megaup-drive-bot/internal/storage"
)

// newUploader builds the configured upload backend. A nil uploader means files are kept locally.
func newUploader(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.Uploader, func(), error) {
	noop := func() {}

	switch cfg.UploadBackend {
	case config.BackendDrive:
		return newDriveUploader(ctx, cfg, logger)
	case config.BackendS3:
		up, err := objstore.New(ctx, cfg.S3, logger)
		if err != nil {
			return nil, noop, err
		}
		return up, noop, nil
	default:
		return nil, noop, nil
	}
}

func newDriveUploader(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.Uploader, func(), error) {
	noop := func() {}

	oauthCfg, err := gdrive.ClientConfig(cfg.DriveCredentialsJSON)
	if err != nil {
		return nil, noop, err
	}

	var (
		store   gdrive.TokenStore = &gdrive.MemoryTokenStore{}
		closeFn                   = noop
	)
	if cfg.CredentialsMasterKey != "" {
		db, err := storage.Open(ctx, cfg.DBPath, cfg.CredentialsMasterKey)
		if err != nil {
			return nil, noop, fmt.Errorf("open credential store: %w", err)
		}
		store = storage.TokenStore{Store: db, Name: storage.DriveTokenName}
		closeFn = func() { _ = db.Close() }
	} else {
		logger.Warn("CREDENTIALS_MASTER_KEY not set, drive token kept in memory only")
	}

	if cfg.DriveTokenJSON != "" {
		tok, err := gdrive.ParseToken(cfg.DriveTokenJSON)
		if err != nil {
			closeFn()
			return nil, noop, err
		}
		seeded, err := gdrive.Seed(ctx, store, tok)
		if err != nil {
			closeFn()
			return nil, noop, fmt.Errorf("seed drive token: %w", err)
		}
		if seeded {
			logger.Info("drive token seeded from TOKEN_JSON")
		}
	}
	if _, err := store.Load(ctx); err != nil {
		logger.Warn("no drive token available yet, uploads will fail until one is stored (see cmd/driveauth)", "err", err)
	}

	ts := gdrive.NewStoreTokenSource(context.Background(), oauthCfg, store, logger)
	up, err := gdrive.NewUploader(ctx, ts, cfg.UploadChunkSize, logger)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return up, closeFn, nil
}
