package helpers

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/quizbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Sender is the part of *tele.Bot used to deliver messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

func logSend(ctx context.Context, action string, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("action", action),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "send.done", attrs...)
		return
	}
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "send.done", attrs...)
	}
}

func withMarkup(opts *tele.SendOptions, markup *tele.ReplyMarkup) *tele.SendOptions {
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	return opts
}

// SendHTML sends an HTML formatted message without link previews.
func SendHTML(ctx context.Context, s Sender, to tele.Recipient, text string, markup *tele.ReplyMarkup) error {
	start := time.Now()
	opts := withMarkup(&tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}, markup)
	_, err := s.Send(to, text, opts)
	logSend(ctx, "send.text", start, err)
	return err
}

// SendPhoto sends a photo with an optional HTML caption.
func SendPhoto(ctx context.Context, s Sender, to tele.Recipient, file tele.File, caption string, markup *tele.ReplyMarkup) error {
	start := time.Now()
	photo := &tele.Photo{File: file, Caption: caption}
	opts := withMarkup(&tele.SendOptions{ParseMode: tele.ModeHTML}, markup)
	_, err := s.Send(to, photo, opts)
	logSend(ctx, "send.photo", start, err)
	return err
}
