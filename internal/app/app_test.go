package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megaup-drive-bot/internal/jobs"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.texts = append(f.texts, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fetchCall struct{ url, name string }

type fakeDownloader struct {
	dir   string
	fail  bool
	mu    sync.Mutex
	calls []fetchCall
}

func (f *fakeDownloader) Fetch(_ context.Context, rawURL, fileName string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{rawURL, fileName})
	f.mu.Unlock()

	p := filepath.Join(f.dir, fileName)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	if f.fail {
		return "", errors.New("wget: exit status 8")
	}
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

type fakeUploader struct {
	err      error
	uploaded []string
}

func (f *fakeUploader) Name() string { return "Google Drive" }

func (f *fakeUploader) Upload(_ context.Context, localPath, fileName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, fileName)
	return "https://drive.google.com/file/d/abc/view", nil
}

func newTestApp(t *testing.T, up Uploader) (*App, *fakeSender, *fakeDownloader) {
	t.Helper()
	s := &fakeSender{}
	d := &fakeDownloader{dir: t.TempDir()}
	runner := jobs.NewRunner(2, nil)
	t.Cleanup(runner.Close)
	a := &App{
		Bot:        s,
		LinkMarker: "megaup.net",
		Downloader: d,
		Runner:     runner,
		Locks:      &jobs.KeyedMutex{},
	}
	if up != nil {
		a.Uploader = up
	}
	return a, s, d
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: 7, Type: "private"},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func TestStartGreeting(t *testing.T) {
	a, s, d := newTestApp(t, &fakeUploader{})
	a.HandleUpdate(context.Background(), textUpdate("/start"))
	a.Runner.Wait()

	assert.Equal(t, []string{
		"Hello! I am a bot that can download files from MegaUp links and upload them to Google Drive. Just send me a MegaUp direct download link.",
	}, s.sent())
	assert.Empty(t, d.calls)
}

func TestStartGreeting_DownloadOnly(t *testing.T) {
	a, s, _ := newTestApp(t, nil)
	a.HandleUpdate(context.Background(), textUpdate("/start"))
	require.Len(t, s.sent(), 1)
	assert.NotContains(t, s.sent()[0], "upload")
}

func TestOtherCommandsIgnored(t *testing.T) {
	a, s, d := newTestApp(t, nil)
	a.HandleUpdate(context.Background(), textUpdate("/help"))
	a.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 2})
	a.Runner.Wait()
	assert.Empty(t, s.sent())
	assert.Empty(t, d.calls)
}

func TestNonLinkRejected(t *testing.T) {
	a, s, d := newTestApp(t, &fakeUploader{})
	a.HandleUpdate(context.Background(), textUpdate("hello there"))
	a.Runner.Wait()

	assert.Equal(t, []string{"Please send a valid MegaUp direct download link."}, s.sent())
	assert.Empty(t, d.calls)
	entries, err := os.ReadDir(d.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLink_DownloadOnly(t *testing.T) {
	a, s, d := newTestApp(t, nil)
	const link = "https://megaup.net/files/report.pdf?sig=abc"
	a.HandleUpdate(context.Background(), textUpdate(link))
	a.Runner.Wait()

	require.Len(t, d.calls, 1)
	assert.Equal(t, fetchCall{url: link, name: "report.pdf"}, d.calls[0])
	assert.Equal(t, []string{
		"Downloading the file, please wait...",
		"File downloaded successfully: report.pdf",
	}, s.sent())
	assert.FileExists(t, filepath.Join(d.dir, "report.pdf"))
}

func TestLink_SchemelessLinkIsDownloaded(t *testing.T) {
	a, s, d := newTestApp(t, nil)
	a.HandleUpdate(context.Background(), textUpdate("megaup.net/files/report.pdf"))
	a.Runner.Wait()

	require.Len(t, d.calls, 1)
	assert.Equal(t, fetchCall{url: "https://megaup.net/files/report.pdf", name: "report.pdf"}, d.calls[0])
	assert.Equal(t, "File downloaded successfully: report.pdf", s.sent()[1])
}

func TestLink_UploadSuccessRemovesFile(t *testing.T) {
	up := &fakeUploader{}
	a, s, d := newTestApp(t, up)
	a.HandleUpdate(context.Background(), textUpdate("https://megaup.net/files/report.pdf?sig=abc"))
	a.Runner.Wait()

	assert.Equal(t, []string{
		"Downloading the file, please wait...",
		"File downloaded successfully! Uploading to Google Drive...",
		"File uploaded to Google Drive: https://drive.google.com/file/d/abc/view",
	}, s.sent())
	assert.Equal(t, []string{"report.pdf"}, up.uploaded)
	assert.NoFileExists(t, filepath.Join(d.dir, "report.pdf"))
}

func TestLink_UploadFailureStillRemovesFile(t *testing.T) {
	a, s, d := newTestApp(t, &fakeUploader{err: errors.New("googleapi: Error 403")})
	a.HandleUpdate(context.Background(), textUpdate("https://megaup.net/files/report.pdf"))
	a.Runner.Wait()

	sent := s.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "Failed to upload to Google Drive.", sent[2])
	assert.NoFileExists(t, filepath.Join(d.dir, "report.pdf"))
}

func TestLink_DownloadFailure(t *testing.T) {
	up := &fakeUploader{}
	a, s, d := newTestApp(t, up)
	d.fail = true
	a.HandleUpdate(context.Background(), textUpdate("https://megaup.net/files/a.zip"))
	a.Runner.Wait()

	assert.Equal(t, []string{
		"Downloading the file, please wait...",
		"Failed to download the file.",
	}, s.sent())
	assert.Empty(t, up.uploaded)
}

func TestLink_ExistingFileIsReused(t *testing.T) {
	a, s, d := newTestApp(t, nil)
	d.fail = true
	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "cached.bin"), []byte("old"), 0o644))

	a.HandleUpdate(context.Background(), textUpdate("https://megaup.net/x/cached.bin"))
	a.Runner.Wait()

	assert.Equal(t, "File downloaded successfully: cached.bin", s.sent()[1])
	b, err := os.ReadFile(filepath.Join(d.dir, "cached.bin"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
}

func TestLink_NoFileNameReportsError(t *testing.T) {
	a, s, d := newTestApp(t, nil)
	a.HandleUpdate(context.Background(), textUpdate("https://megaup.net/"))
	a.Runner.Wait()

	sent := s.sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1], "Error: ")
	assert.Empty(t, d.calls)
}

type panicDownloader struct{}

func (panicDownloader) Fetch(context.Context, string, string) (string, error) { panic("boom") }

func TestLink_PanicBecomesErrorReply(t *testing.T) {
	a, s, _ := newTestApp(t, nil)
	a.Downloader = panicDownloader{}
	a.HandleUpdate(context.Background(), textUpdate("https://megaup.net/files/a.zip"))
	a.Runner.Wait()

	sent := s.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Error: boom", sent[1])
}
