package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type WebhookHandlerOpts struct {
	// If provided, we will require X-Telegram-Bot-Api-Secret-Token to match.
	SecretToken string

	Logger *slog.Logger

	OnUpdate func(context.Context, tgbotapi.Update)
}

// NewWebhookHandler decodes Telegram updates and hands them to OnUpdate in the background.
// It answers 200 "OK" for any decodable update and 500 "Error" for bodies it cannot read or decode.
func NewWebhookHandler(opts WebhookHandlerOpts) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	fail := func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Error"))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if opts.SecretToken != "" {
			got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
			if got != opts.SecretToken {
				log.Warn("telegram webhook unauthorized", "remote", r.RemoteAddr)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}

		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, 2<<20)) // 2MB is plenty for update JSON
		if err != nil {
			log.Warn("telegram webhook read failed", "err", err)
			fail(w)
			return
		}

		var upd tgbotapi.Update
		if err := json.Unmarshal(body, &upd); err != nil {
			log.Warn("telegram webhook decode failed", "err", err)
			fail(w)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))

		if opts.OnUpdate != nil {
			go func(u tgbotapi.Update) {
				defer func() {
					if rec := recover(); rec != nil {
						log.Error("panic in update handler", "update_id", u.UpdateID, "recover", rec)
					}
				}()
				log.Info("telegram update received", "update_id", u.UpdateID)
				opts.OnUpdate(context.Background(), u)
			}(upd)
		}
	})
}
