package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// AllowedUpdates lists the update kinds the bot subscribes to.
var AllowedUpdates = []string{"message", "callback_query"}

// BuildPoller returns the telebot poller for the configured run mode.
//
// In webhook mode the poller never listens itself: updates arrive through
// Server, which calls Bot.ProcessUpdate in the request goroutine. The
// poller only registers the webhook on start when auto_register is set.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			AllowedUpdates:   AllowedUpdates,
			DropUpdates:      cfg.Webhook.DropPending,
			IgnoreSetWebhook: !cfg.Webhook.AutoRegister,
			Endpoint:         &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL()},
		}
	}

	timeoutSec := cfg.Telegram.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{
		Timeout:        time.Duration(timeoutSec) * time.Second,
		AllowedUpdates: AllowedUpdates,
	}
}
