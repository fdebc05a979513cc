package bot

import (
	"strconv"
	"strings"

	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/format"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/internal/quiz"

	tele "gopkg.in/telebot.v4"
)

func payload(c tele.Context) string {
	if m := c.Message(); m != nil {
		return strings.TrimSpace(m.Payload)
	}
	return ""
}

func (h *Handlers) start(c tele.Context) error {
	team := strings.ReplaceAll(payload(c), "_", " ")
	return h.deliver(c, h.opts.Engine.Start(tghelpers.BuildContext(c), tghelpers.ChatID(c), team))
}

func (h *Handlers) restart(c tele.Context) error {
	return h.deliver(c, h.opts.Engine.Restart(tghelpers.BuildContext(c), tghelpers.ChatID(c)))
}

func (h *Handlers) hintCommand(c tele.Context) error {
	return h.deliver(c, h.opts.Engine.Hint(tghelpers.BuildContext(c), tghelpers.ChatID(c), quiz.CurrentPosition))
}

func (h *Handlers) nextCommand(c tele.Context) error {
	return h.deliver(c, h.opts.Engine.Next(tghelpers.BuildContext(c), tghelpers.ChatID(c), quiz.CurrentPosition))
}

func (h *Handlers) status(c tele.Context) error {
	return h.deliver(c, h.opts.Engine.Status(tghelpers.BuildContext(c), tghelpers.ChatID(c)))
}

func (h *Handlers) help(c tele.Context) error {
	penalty := int(h.opts.Engine.HintPenalty().Seconds())
	text := format.Lines(
		format.Bold("How to play"),
		"Type START to begin, then send your team name.",
		"Tap an option to answer. Type HINT for a hint or NEXT to move on.",
		hintCost(penalty),
		"/status shows your progress, /restart starts over.",
	)
	return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func hintCost(penalty int) string {
	if penalty <= 0 {
		return ""
	}
	return format.Italic("Each first hint on a question adds " + strconv.Itoa(penalty) + "s to your time.")
}

func (h *Handlers) text(c tele.Context) error {
	return h.deliver(c, h.opts.Engine.Text(tghelpers.BuildContext(c), tghelpers.ChatID(c), c.Text()))
}

func (h *Handlers) photo(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Photo == nil {
		return nil
	}
	return h.deliver(c, h.opts.Engine.Photo(tghelpers.BuildContext(c), tghelpers.ChatID(c), m.Photo.FileID))
}

// Malformed callback payloads are ignored.

func (h *Handlers) answerCallback(c tele.Context) error {
	v, err := callbacks.PayloadInts(c, 2)
	if err != nil {
		return nil
	}
	return h.deliver(c, h.opts.Engine.Answer(tghelpers.BuildContext(c), tghelpers.ChatID(c), v[0], v[1]))
}

func (h *Handlers) hintCallback(c tele.Context) error {
	v, err := callbacks.PayloadInts(c, 1)
	if err != nil {
		return nil
	}
	return h.deliver(c, h.opts.Engine.Hint(tghelpers.BuildContext(c), tghelpers.ChatID(c), v[0]))
}

func (h *Handlers) nextCallback(c tele.Context) error {
	v, err := callbacks.PayloadInts(c, 1)
	if err != nil {
		return nil
	}
	return h.deliver(c, h.opts.Engine.Next(tghelpers.BuildContext(c), tghelpers.ChatID(c), v[0]))
}
