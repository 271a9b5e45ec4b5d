package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"

	"megaup-drive-bot/internal/telegram"
)

func main() {
	var (
		token       = flag.String("token", strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")), "Telegram bot token (or env TELEGRAM_BOT_TOKEN)")
		baseURL     = flag.String("base-url", strings.TrimSpace(os.Getenv("RAILWAY_URL")), "Public base URL, e.g. https://bot.example.com (or env RAILWAY_URL)")
		secretToken = flag.String("secret", strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_SECRET")), "Webhook secret token (or env TELEGRAM_WEBHOOK_SECRET)")
		dropPending = flag.Bool("drop-pending", true, "Drop pending updates")
		remove      = flag.Bool("delete", false, "Delete the webhook instead of setting it")
	)
	flag.Parse()

	if *token == "" {
		fatal(errors.New("missing -token / TELEGRAM_BOT_TOKEN"))
	}

	bot, err := tgbotapi.NewBotAPI(*token)
	if err != nil {
		fatal(err)
	}

	if *remove {
		if err := telegram.DeleteWebhook(bot, *dropPending); err != nil {
			fatal(err)
		}
		fmt.Println("ok")
		return
	}

	base := strings.TrimSuffix(*baseURL, "/")
	if base == "" {
		fatal(errors.New("missing -base-url / RAILWAY_URL"))
	}
	err = telegram.SetWebhook(bot, telegram.WebhookRegistration{
		URL:         base + "/" + *token,
		SecretToken: *secretToken,
		DropPending: *dropPending,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Println("ok")
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}
