package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"megaup-drive-bot/internal/jobs"
	"megaup-drive-bot/internal/links"
	"megaup-drive-bot/internal/metrics"
)

// Sender is the part of *tgbotapi.BotAPI the router needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Downloader interface {
	Fetch(ctx context.Context, rawURL, fileName string) (string, error)
}

// Uploader pushes a local file to remote storage and returns a shareable link.
type Uploader interface {
	Upload(ctx context.Context, localPath, fileName string) (string, error)
	Name() string
}

type App struct {
	Bot    Sender
	Logger *slog.Logger

	LinkMarker string

	Downloader Downloader
	// Nil means download-only: files stay in the download directory.
	Uploader      Uploader
	UploadTimeout time.Duration

	Runner *jobs.Runner
	Locks  *jobs.KeyedMutex
}

func (a *App) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// HandleUpdate routes a single Telegram update. Link messages are acknowledged
// here and the download itself runs on the job runner.
func (a *App) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		if strings.EqualFold(msg.Command(), "start") {
			a.reply(msg.Chat.ID, greeting(a.Uploader))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if !links.HasMarker(text, a.LinkMarker) {
		metrics.LinksTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		a.reply(msg.Chat.ID, replyRejected)
		return
	}

	a.reply(msg.Chat.ID, replyDownloading)

	if a.Runner == nil {
		a.handleLink(ctx, "", msg)
		return
	}
	a.Runner.Submit("link", func(ctx context.Context, jobID string) {
		a.handleLink(ctx, jobID, msg)
	})
}

func (a *App) handleLink(ctx context.Context, jobID string, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	log := a.log().With("job_id", jobID, "chat_id", chatID, "message_id", msg.MessageID)

	outcome := metrics.OutcomeError
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in link flow", "recover", rec)
			a.reply(chatID, replyError(fmt.Errorf("%v", rec)))
			outcome = metrics.OutcomeError
		}
		metrics.LinksTotal.WithLabelValues(outcome).Inc()
	}()

	rawURL := links.PickLink(msg, a.LinkMarker)
	fileName, err := links.FileName(rawURL)
	if err != nil {
		log.Warn("cannot derive file name", "err", err)
		a.reply(chatID, replyError(err))
		return
	}
	log = log.With("file", fileName)

	if a.Locks != nil {
		unlock := a.Locks.Lock(fileName)
		defer unlock()
	}

	start := time.Now()
	path, err := a.Downloader.Fetch(ctx, rawURL, fileName)
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	if err != nil || !fileExists(path) {
		log.Warn("download failed", "err", err)
		outcome = metrics.OutcomeDownloadFailed
		a.reply(chatID, replyDownloadFailed)
		return
	}
	log.Info("download finished", "path", path, "took", time.Since(start).Round(time.Millisecond))

	if a.Uploader == nil {
		outcome = metrics.OutcomeDone
		a.reply(chatID, replyDownloaded(fileName))
		return
	}

	backend := a.Uploader.Name()
	a.reply(chatID, replyUploading(backend))

	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("remove local file failed", "path", path, "err", err)
		}
	}()

	uctx := ctx
	if a.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, a.UploadTimeout)
		defer cancel()
	}

	link, err := a.Uploader.Upload(uctx, path, fileName)
	if err != nil {
		log.Warn("upload failed", "backend", backend, "err", err)
		metrics.UploadsTotal.WithLabelValues(backend, "error").Inc()
		outcome = metrics.OutcomeUploadFailed
		a.reply(chatID, replyUploadFailed(backend))
		return
	}
	metrics.UploadsTotal.WithLabelValues(backend, "ok").Inc()
	outcome = metrics.OutcomeDone
	log.Info("upload finished", "backend", backend)
	a.reply(chatID, replyUploaded(backend, link))
}

func (a *App) reply(chatID int64, text string) {
	if _, err := a.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		a.log().Warn("send reply failed", "chat_id", chatID, "err", err)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
