package bot

import (
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/format"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/keyboard"
	"github.com/m3rciful/quizbot/core/telegram/router"
	"github.com/m3rciful/quizbot/internal/quiz"

	tele "gopkg.in/telebot.v4"
)

// deliver sends an engine outcome back to the chat and hands finished runs
// and uploads to their consumers.
func (h *Handlers) deliver(c tele.Context, out quiz.Outcome) error {
	ctx := tghelpers.BuildContext(c)
	if out.Stale {
		c.Set("outcome", "stale")
	}

	replies := out.Replies
	if out.Notice != "" {
		if c.Callback() != nil {
			_ = router.Respond(c, out.Notice)
		} else {
			replies = append([]quiz.Reply{{Text: format.EscapeHTML(out.Notice)}}, replies...)
		}
	}

	var errs []error
	for _, r := range replies {
		if err := h.send(c, r); err != nil {
			errs = append(errs, err)
		}
	}

	if out.Upload != nil {
		h.forwardUpload(ctx, c, out.Upload)
	}
	if out.Result != nil && h.opts.Publisher != nil {
		if err := h.opts.Publisher.Publish(ctx, out.Result); err != nil {
			logger.LogEvent(ctx, logger.Results, slog.LevelWarn, "results.publish_failed",
				slog.String("run_id", out.Result.RunID),
				slog.String("err", err.Error()),
			)
		}
	}
	return errors.Join(errs...)
}

func markup(rows [][]quiz.Button) *tele.ReplyMarkup {
	btns := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Data})
		}
		btns = append(btns, r)
	}
	return keyboard.InlineButtonsRows(btns...)
}

func htmlOptions(kb *tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
	if kb != nil {
		opts.ReplyMarkup = kb
	}
	return opts
}

func sendText(c tele.Context, text string, kb *tele.ReplyMarkup) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.Send(text, htmlOptions(kb))
}

// send delivers one reply. Captions over the Telegram limit go out as a
// bare photo followed by the text; a failed photo falls back to text.
func (h *Handlers) send(c tele.Context, r quiz.Reply) error {
	kb := markup(r.Buttons)
	if r.Image == "" {
		return sendText(c, r.Text, kb)
	}
	file, ok := h.asset(r.Image)
	if !ok {
		logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "send.asset_unresolved",
			slog.String("status", "skip"),
			slog.String("image", r.Image),
		)
		return sendText(c, r.Text, kb)
	}

	caption := r.Text
	if !format.FitsCaption(caption) {
		caption = ""
	}
	photoKB := kb
	if caption == "" && r.Text != "" {
		photoKB = nil
	}
	err := c.Send(&tele.Photo{File: file, Caption: caption}, htmlOptions(photoKB))
	if err != nil {
		logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "send.photo_fallback",
			slog.String("status", "fail"),
			slog.String("image", r.Image),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return sendText(c, r.Text, kb)
	}
	if caption == "" && r.Text != "" {
		return sendText(c, r.Text, kb)
	}
	return nil
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// asset resolves an image reference: remote URLs as-is, then a local file
// under the assets dir, then a link under the public base URL, which falls
// back to the base URL updates arrive on.
func (h *Handlers) asset(ref string) (tele.File, bool) {
	ref = strings.TrimSpace(ref)
	if isRemote(ref) {
		return tele.FromURL(ref), true
	}
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(ref)), "/")
	if h.opts.AssetsDir != "" {
		local := filepath.Join(h.opts.AssetsDir, filepath.FromSlash(strings.TrimPrefix(clean, "static/")))
		if fi, err := os.Stat(local); err == nil && !fi.IsDir() {
			return tele.FromDisk(local), true
		}
	}
	base := h.opts.PublicURL
	if base == "" && h.baseURL != nil {
		base = h.baseURL()
	}
	if base = strings.TrimRight(base, "/"); base != "" {
		return tele.FromURL(base + "/" + clean), true
	}
	return tele.File{}, false
}
