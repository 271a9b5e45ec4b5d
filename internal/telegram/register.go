package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Requester is the subset of *tgbotapi.BotAPI used for raw Bot API calls.
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

type WebhookRegistration struct {
	URL         string
	SecretToken string
	DropPending bool
}

// SetWebhook points Telegram at reg.URL. setWebhook is called directly so the optional
// secret_token can be sent along.
func SetWebhook(bot Requester, reg WebhookRegistration) error {
	if !strings.HasPrefix(reg.URL, "https://") {
		return errors.New("webhook url must be https://")
	}
	params := tgbotapi.Params{"url": reg.URL}
	params.AddNonEmpty("secret_token", reg.SecretToken)
	params.AddBool("drop_pending_updates", reg.DropPending)

	if _, err := bot.MakeRequest("setWebhook", params); err != nil {
		// Never echo reg.URL: it contains the bot token.
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

func DeleteWebhook(bot Requester, dropPending bool) error {
	params := tgbotapi.Params{}
	params.AddBool("drop_pending_updates", dropPending)
	if _, err := bot.MakeRequest("deleteWebhook", params); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}
