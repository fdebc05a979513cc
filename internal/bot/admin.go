package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/format"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/middleware"
	"github.com/m3rciful/quizbot/internal/quiz"

	tele "gopkg.in/telebot.v4"
)

const qrSize = 256

func (h *Handlers) reload(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	bank, err := quiz.LoadBank(h.opts.QuestionsPath)
	if err != nil {
		msg := "❌ Reload failed: " + format.EscapeHTML(err.Error())
		_ = c.Send(msg, &tele.SendOptions{ParseMode: tele.ModeHTML})
		return fmt.Errorf("reload questions: %w", err)
	}
	h.opts.Engine.SetBank(bank)
	logger.LogEvent(ctx, logger.Quiz, slog.LevelInfo, "quiz.reload",
		slog.String("status", "ok"),
		slog.String("source", bank.Source()),
		slog.Int("questions", bank.Len()),
		slog.Int("hidden", bank.Hidden()),
		slog.Time("loaded_at", bank.LoadedAt()),
	)
	return c.Send(fmt.Sprintf("✅ Reloaded %d questions (%d hidden). Running quizzes keep their current set.", bank.Len(), bank.Hidden()))
}

func (h *Handlers) sessions(c tele.Context) error {
	infos := h.opts.Engine.Sessions()
	if len(infos) == 0 {
		return c.Send("No active sessions.")
	}
	lines := []string{format.Bold("Active sessions: " + strconv.Itoa(len(infos)))}
	for _, s := range infos {
		team := s.Team
		if team == "" {
			team = "(no team yet)"
		}
		lines = append(lines, fmt.Sprintf("• %s · %d/%d · score %d · %s · %s",
			format.Bold(team), s.Position, s.Total, s.Score, format.Clock(s.Elapsed), s.Stage))
	}
	return c.Send(format.Lines(lines...), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

// deepLinkPayload maps a team name onto the characters Telegram allows in
// a start parameter. Spaces become underscores and come back on /start.
func deepLinkPayload(team string) string {
	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(team), "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
		if b.Len() == 64 {
			break
		}
	}
	return b.String()
}

// StartLink is the deep link that opens the bot and starts a run for team.
func StartLink(username, team string) string {
	link := "https://t.me/" + username
	if p := deepLinkPayload(team); p != "" {
		link += "?start=" + url.QueryEscape(p)
	}
	return link
}

func (h *Handlers) qr(c tele.Context) error {
	if h.bot == nil || h.bot.Me == nil || h.bot.Me.Username == "" {
		return c.Send("Bot username is not known yet.")
	}
	team := payload(c)
	link := StartLink(h.bot.Me.Username, team)
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	caption := link
	if team != "" {
		caption = format.Bold(team) + "\n" + link
	}
	return c.Send(&tele.Photo{File: tele.FromReader(bytes.NewReader(png)), Caption: caption},
		&tele.SendOptions{ParseMode: tele.ModeHTML})
}

func uploadCaption(u *quiz.Upload) string {
	line := "📸 " + format.Bold(u.Team) + " · question " + strconv.Itoa(u.Position+1) + "/" + strconv.Itoa(u.Total)
	if !u.Credited {
		line += " " + format.Italic("(extra upload)")
	}
	return line
}

// forwardUpload sends a submitted photo to the admin chats, queued on the
// dispatcher when there is one.
func (h *Handlers) forwardUpload(ctx context.Context, c tele.Context, u *quiz.Upload) {
	if h.bot == nil || len(h.opts.AdminChats) == 0 || u.FileID == "" {
		return
	}
	caption := uploadCaption(u)
	for _, id := range h.opts.AdminChats {
		to := &tele.Chat{ID: id}
		send := func(ctx context.Context) error {
			return tghelpers.SendPhoto(ctx, h.bot, to, tele.File{FileID: u.FileID}, caption, nil)
		}
		if h.opts.Dispatcher == nil {
			if send(ctx) == nil {
				middleware.AddMessages(c, 1, false)
			}
			continue
		}
		if err := h.opts.Dispatcher.Enqueue(ctx, "photo.forward", strconv.FormatInt(id, 10), send); err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "photo.forward",
				slog.String("status", "fail"),
				slog.Int64("admin_chat", id),
				slog.String("err", err.Error()),
			)
		}
	}
}
