package quiz

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/format"
	"github.com/m3rciful/quizbot/core/telegram/state"
)

// DefaultHintPenalty is charged the first time a question's hint is shown.
const DefaultHintPenalty = 60 * time.Second

// CurrentPosition asks Hint and Next to act on the session's current question.
const CurrentPosition = -1

const maxTeamNameRunes = 64

// Options tune an Engine. Zero values select defaults, except that a zero
// HintPenalty charges nothing.
type Options struct {
	HintPenalty time.Duration
	Store       state.Store[Session]
	Now         func() time.Time
	NewRunID    func() string
}

// Engine runs the quiz state machine. It performs no I/O: every call
// returns an Outcome for the transport to deliver.
type Engine struct {
	bank  atomic.Pointer[Bank]
	store state.Store[Session]
	opts  Options
}

// NewEngine returns an engine serving bank.
func NewEngine(bank *Bank, opts Options) *Engine {
	if opts.HintPenalty < 0 {
		opts.HintPenalty = 0
	}
	if opts.Store == nil {
		opts.Store = state.NewMemoryStore[Session]()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = func() string { return uuid.NewString() }
	}
	e := &Engine{store: opts.Store, opts: opts}
	e.bank.Store(bank)
	return e
}

// Bank returns the bank new runs start on.
func (e *Engine) Bank() *Bank { return e.bank.Load() }

// SetBank swaps the bank for new runs. Running sessions keep theirs.
func (e *Engine) SetBank(b *Bank) {
	if b != nil {
		e.bank.Store(b)
	}
}

// HintPenalty is the time charged for the first hint on a question.
func (e *Engine) HintPenalty() time.Duration { return e.opts.HintPenalty }

func (e *Engine) penaltySeconds() int {
	return int(e.opts.HintPenalty / time.Second)
}

func secondsDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func (e *Engine) log(ctx context.Context, level slog.Level, event string, s *Session, attrs ...slog.Attr) {
	if s != nil {
		attrs = append(attrs,
			slog.String("run_id", s.RunID),
			slog.String("team", logger.SanitizeLimit(s.Team, 64)),
			slog.String("stage", string(s.Stage)),
			slog.Int("question", s.Index+1),
			slog.Int("score", s.Score),
			slog.Int("total", s.Total()),
		)
	}
	logger.LogEvent(ctx, logger.Quiz, level, event, attrs...)
}

// Start begins a fresh run for chatID, dropping any previous session.
// With an empty team the bot first asks for the team name.
func (e *Engine) Start(ctx context.Context, chatID int64, team string) Outcome {
	var out Outcome
	bank := e.Bank()
	if bank.Len() == 0 {
		e.store.Delete(chatID)
		out.say(msgEmptyBank)
		return out
	}
	team = cleanTeam(team)
	e.store.Update(chatID, func(s *Session, _ bool) bool {
		now := e.opts.Now()
		*s = Session{
			RunID:     e.opts.NewRunID(),
			ChatID:    chatID,
			Stage:     StageTeamName,
			Hinted:    make(map[int]bool),
			StartedAt: now,
			Bank:      bank,
		}
		if team == "" {
			out.say(msgTeamPrompt)
		} else {
			e.begin(s, team, now, &out)
		}
		e.log(ctx, slog.LevelInfo, "quiz.start", s)
		return true
	})
	return out
}

// Restart starts over, keeping the team name of the current run if any.
func (e *Engine) Restart(ctx context.Context, chatID int64) Outcome {
	team := ""
	if s, ok := e.store.Get(chatID); ok {
		team = s.Team
	}
	return e.Start(ctx, chatID, team)
}

func (e *Engine) begin(s *Session, team string, now time.Time, out *Outcome) {
	s.Team = team
	s.StartedAt = now
	s.Clock.Start(now)
	out.say(welcome(team))
	e.present(s, out)
}

// present shows the current question and sets the matching stage.
func (e *Engine) present(s *Session, out *Outcome) {
	q, _ := s.Current()
	s.Stage = StageQuestion
	if q.Photo {
		s.Stage = StagePhoto
	}
	s.PhotoCredited = false
	out.Replies = append(out.Replies, presentQuestion(q, s.Index, s.Total()))
}

// Text handles plain text: the team name, or an option typed verbatim.
func (e *Engine) Text(ctx context.Context, chatID int64, text string) Outcome {
	var out Outcome
	text = strings.TrimSpace(text)
	e.store.Update(chatID, func(s *Session, exists bool) bool {
		if !exists {
			out.say(msgStartPrompt)
			return false
		}
		switch s.Stage {
		case StageTeamName:
			team := cleanTeam(text)
			if team == "" || strings.HasPrefix(team, "/") {
				out.say(msgTeamPrompt)
				return true
			}
			e.begin(s, team, e.opts.Now(), &out)
			e.log(ctx, slog.LevelInfo, "quiz.team", s)
		case StageQuestion:
			q, _ := s.Current()
			if opt := q.OptionIndex(text); opt >= 0 {
				return e.answer(ctx, s, opt, &out)
			}
			out.say(msgTapOption)
			e.present(s, &out)
		case StagePhoto:
			out.say(msgPhotoPrompt)
		case StageAwaitingNext:
			out.say(msgTapNext, nextButton(s.Index, s.Total())...)
		}
		return true
	})
	return out
}

// Answer applies an option tap for the question at pos.
func (e *Engine) Answer(ctx context.Context, chatID int64, pos, opt int) Outcome {
	var out Outcome
	e.store.Update(chatID, func(s *Session, exists bool) bool {
		if !exists {
			out.say(msgStartPrompt)
			return false
		}
		q, _ := s.Current()
		if s.Stage != StageQuestion || pos != s.Index || opt < 0 || opt >= len(q.Options) {
			out.stale()
			e.log(ctx, slog.LevelDebug, "quiz.answer", s, slog.String("outcome", "stale"))
			return true
		}
		return e.answer(ctx, s, opt, &out)
	})
	return out
}

func (e *Engine) answer(ctx context.Context, s *Session, opt int, out *Outcome) bool {
	q, _ := s.Current()
	correct := q.Options[opt] == q.Answer
	if correct {
		s.Score++
		out.say(msgCorrect)
	} else {
		out.say(wrongAnswer(q))
	}
	s.Answers = append(s.Answers, AnswerRecord{
		QuestionID: q.ID,
		Position:   s.Index,
		Selected:   q.Options[opt],
		Correct:    correct,
		HintUsed:   s.Hinted[s.Index],
	})
	e.log(ctx, slog.LevelInfo, "quiz.answer", s, slog.Bool("correct", correct))
	e.awaitNext(s, q, out)
	return true
}

// awaitNext sends explanations, pauses the clock and offers Next.
func (e *Engine) awaitNext(s *Session, q Question, out *Outcome) {
	out.Replies = append(out.Replies, explanationReplies(q)...)
	s.Stage = StageAwaitingNext
	s.Clock.Pause(e.opts.Now())
	last := len(out.Replies) - 1
	out.Replies[last].Buttons = append(out.Replies[last].Buttons, nextButton(s.Index, s.Total())...)
}

// Hint shows the hint of the question at pos, charging the penalty once.
func (e *Engine) Hint(ctx context.Context, chatID int64, pos int) Outcome {
	var out Outcome
	e.store.Update(chatID, func(s *Session, exists bool) bool {
		if !exists {
			out.say(msgNotActive)
			return false
		}
		if s.Stage != StageQuestion && s.Stage != StagePhoto {
			switch {
			case pos != CurrentPosition:
				out.stale()
			case s.Stage == StageTeamName:
				out.say(msgTeamPrompt)
			default:
				out.say(msgTapNext, nextButton(s.Index, s.Total())...)
			}
			return true
		}
		if pos != CurrentPosition && pos != s.Index {
			out.stale()
			return true
		}
		q, _ := s.Current()
		if !q.HasHint() {
			out.say(msgNoHint)
			return true
		}
		charged := !s.Hinted[s.Index]
		if charged {
			s.Hinted[s.Index] = true
			s.PenaltySeconds += e.penaltySeconds()
		}
		out.Replies = append(out.Replies, Reply{Text: hintText(q, e.penaltySeconds(), charged), Image: q.HintImage})
		e.log(ctx, slog.LevelInfo, "quiz.hint", s,
			slog.Bool("charged", charged),
			slog.Int("penalty_s", s.PenaltySeconds),
		)
		return true
	})
	return out
}

// Next advances past the question at pos. It is accepted while awaiting
// Next, or on a photo task as an explicit skip.
func (e *Engine) Next(ctx context.Context, chatID int64, pos int) Outcome {
	var out Outcome
	e.store.Update(chatID, func(s *Session, exists bool) bool {
		if !exists {
			out.say(msgStartPrompt)
			return false
		}
		if pos != CurrentPosition && pos != s.Index {
			out.stale()
			return true
		}
		now := e.opts.Now()
		switch s.Stage {
		case StageAwaitingNext:
			s.Clock.Start(now)
		case StagePhoto:
			q, _ := s.Current()
			s.Answers = append(s.Answers, AnswerRecord{
				QuestionID: q.ID,
				Position:   s.Index,
				Photo:      true,
				Skipped:    true,
				HintUsed:   s.Hinted[s.Index],
			})
			e.log(ctx, slog.LevelInfo, "quiz.skip", s)
		case StageTeamName:
			out.say(msgTeamPrompt)
			return true
		default:
			out.Notice = msgNothingToNext
			return true
		}
		s.Index++
		if s.Index >= s.Total() {
			e.finalize(ctx, s, now, &out)
			return false
		}
		e.present(s, &out)
		return true
	})
	return out
}

// Photo handles a photo upload. The first upload on a photo task earns
// the point; later ones are acknowledged without credit.
func (e *Engine) Photo(ctx context.Context, chatID int64, fileID string) Outcome {
	var out Outcome
	e.store.Update(chatID, func(s *Session, exists bool) bool {
		if !exists {
			out.say(msgStartPrompt)
			return false
		}
		q, _ := s.Current()
		upload := &Upload{FileID: fileID, Team: s.Team, Position: s.Index, Total: s.Total()}
		switch {
		case s.Stage == StagePhoto:
			s.Score++
			s.PhotoCredited = true
			upload.Credited = true
			s.Answers = append(s.Answers, AnswerRecord{
				QuestionID: q.ID,
				Position:   s.Index,
				Correct:    true,
				Photo:      true,
				HintUsed:   s.Hinted[s.Index],
			})
			out.say("📸 Photo received! +1 point.")
			e.awaitNext(s, q, &out)
			e.log(ctx, slog.LevelInfo, "quiz.photo", s, slog.Bool("credited", true))
		case s.Stage == StageAwaitingNext && q.Photo && s.PhotoCredited:
			out.say("📸 Got another photo! Credit was already awarded for this task.", nextButton(s.Index, s.Total())...)
			e.log(ctx, slog.LevelInfo, "quiz.photo", s, slog.Bool("credited", false))
		default:
			out.say(msgNoPhotoNeeded)
			return true
		}
		out.Upload = upload
		return true
	})
	return out
}

// Status describes the chat's progress.
func (e *Engine) Status(_ context.Context, chatID int64) Outcome {
	var out Outcome
	s, ok := e.store.Get(chatID)
	if !ok {
		out.say(msgStartPrompt)
		return out
	}
	if s.Stage == StageTeamName {
		out.say(msgTeamPrompt)
		return out
	}
	now := e.opts.Now()
	out.say(format.Lines(
		"👥 Team: "+format.Bold(s.Team),
		"❓ Question "+strconv.Itoa(s.Index+1)+"/"+strconv.Itoa(s.Total()),
		"🏆 Score: "+format.Bold(strconv.Itoa(s.Score)),
		"⏱ Time: "+format.Clock(s.Clock.Total(now))+penaltySuffix(s.PenaltySeconds),
	))
	return out
}

func penaltySuffix(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return " (+" + strconv.Itoa(seconds) + "s penalty)"
}

func (e *Engine) finalize(ctx context.Context, s *Session, now time.Time, out *Outcome) {
	s.Clock.Pause(now)
	res := newResult(s, now)
	out.Result = res
	out.say(summary(res))
	out.say(msgPlayAgain)
	e.log(ctx, slog.LevelInfo, "quiz.finish", s,
		slog.Int64("total_seconds", res.TotalSeconds),
		slog.Int("penalty_s", res.PenaltySeconds),
	)
}

// Sessions lists active sessions ordered by chat id.
func (e *Engine) Sessions() []SessionInfo {
	now := e.opts.Now()
	var out []SessionInfo
	e.store.Range(func(chatID int64, s Session) bool {
		out = append(out, SessionInfo{
			ChatID:   chatID,
			Team:     s.Team,
			Stage:    s.Stage,
			Position: s.Index + 1,
			Total:    s.Total(),
			Score:    s.Score,
			Elapsed:  s.Elapsed(now),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

func cleanTeam(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if r := []rune(name); len(r) > maxTeamNameRunes {
		name = string(r[:maxTeamNameRunes])
	}
	return name
}
