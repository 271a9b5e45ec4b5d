package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"megaup-drive-bot/internal/app"
	"megaup-drive-bot/internal/config"
	"megaup-drive-bot/internal/fetch"
	"megaup-drive-bot/internal/jobs"
	"megaup-drive-bot/internal/metrics"
	"megaup-drive-bot/internal/telegram"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config validation error", "err", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Error("failed to init telegram bot", "err", err)
		os.Exit(2)
	}
	bot.Debug = cfg.TelegramDebug
	logger.Info("telegram bot initialized", "username", bot.Self.UserName)

	downloader := fetch.NewDownloader(cfg.DownloadDir, cfg.DownloadTool, cfg.DownloadTimeout, logger)
	if err := downloader.EnsureDir(); err != nil {
		logger.Error("failed to prepare download dir", "err", err)
		os.Exit(2)
	}

	uploader, closeUploader, err := newUploader(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init upload backend", "backend", cfg.UploadBackend, "err", err)
		os.Exit(2)
	}
	defer closeUploader()

	runner := jobs.NewRunner(cfg.MaxJobs, logger)
	runner.OnStart = metrics.JobsRunning.Inc
	runner.OnDone = metrics.JobsRunning.Dec

	application := &app.App{
		Bot:           bot,
		Logger:        logger,
		LinkMarker:    cfg.LinkMarker,
		Downloader:    downloader,
		UploadTimeout: cfg.UploadTimeout,
		Runner:        runner,
		Locks:         &jobs.KeyedMutex{},
	}
	if uploader != nil {
		application.Uploader = uploader
	}

	if u := cfg.WebhookURL(); u != "" {
		err := telegram.SetWebhook(bot, telegram.WebhookRegistration{
			URL:         u,
			SecretToken: cfg.TelegramWebhookSecret,
		})
		if err != nil {
			logger.Error("failed to register webhook", "err", err)
			os.Exit(2)
		}
		logger.Info("webhook registered", "base_url", cfg.PublicBaseURL)
	} else {
		logger.Warn("RAILWAY_URL not set, webhook not registered")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle(cfg.WebhookPath(), metrics.Middleware("webhook", telegram.NewWebhookHandler(telegram.WebhookHandlerOpts{
		SecretToken: cfg.TelegramWebhookSecret,
		Logger:      logger,
		OnUpdate:    application.HandleUpdate,
	})))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr, "upload_backend", cfg.UploadBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	runner.Close()
	logger.Info("shutdown complete")
}
