package bot

import (
	"github.com/m3rciful/quizbot/core/telegram/router"
	"github.com/m3rciful/quizbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// Fallbacks answers updates no quiz handler took.
type Fallbacks struct{}

var _ ui.FallbackProvider = Fallbacks{}

// UnknownText nudges the user towards START.
func (Fallbacks) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error { return c.Send("Type START to begin the quiz.") }
}

// UnknownPhoto is used when no photo handler is registered.
func (Fallbacks) UnknownPhoto() tele.HandlerFunc {
	return func(c tele.Context) error { return c.Send("This question doesn't need a photo.") }
}

func (Fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error { return router.Respond(c, "This button is no longer active.") }
}

// RateLimited only answers button taps; extra messages are dropped silently.
func (Fallbacks) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			return router.Respond(c, "⏳ Slow down a little.")
		}
		return nil
	}
}

func (Fallbacks) AdminRejected() tele.HandlerFunc {
	return func(c tele.Context) error { return c.Send("⛔ This command is for admins only.") }
}
