package results

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/quizbot/core/telegram/format"
	"github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/internal/quiz"
)

// NotifySink sends a summary of each run to admin chats.
type NotifySink struct {
	sender helpers.Sender
	chats  []int64
}

// NewNotifySink returns nil when no chats are configured.
func NewNotifySink(sender helpers.Sender, chats []int64) *NotifySink {
	if sender == nil || len(chats) == 0 {
		return nil
	}
	return &NotifySink{sender: sender, chats: append([]int64(nil), chats...)}
}

// Name implements Sink.
func (s *NotifySink) Name() string { return "telegram" }

// Summary is the admin notification text for r.
func Summary(r *quiz.Result) string {
	total := format.Clock(time.Duration(r.TotalSeconds) * time.Second)
	return format.Lines(
		"🏁 "+format.Bold(r.Team)+" finished the quiz",
		"Score: "+format.Bold(strconv.Itoa(r.Score)+"/"+strconv.Itoa(r.Total)),
		"Time: "+format.Clock(time.Duration(r.ElapsedSeconds)*time.Second)+
			" + "+strconv.Itoa(r.PenaltySeconds)+"s penalty = "+format.Bold(total),
		"Hints used: "+strconv.Itoa(r.HintsUsed),
	)
}

// Deliver implements Sink. Every chat is attempted.
func (s *NotifySink) Deliver(ctx context.Context, r *quiz.Result) error {
	text := Summary(r)
	var errs []error
	for _, id := range s.chats {
		if err := helpers.SendHTML(ctx, s.sender, &tele.Chat{ID: id}, text, nil); err != nil {
			errs = append(errs, fmt.Errorf("telegram: chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
