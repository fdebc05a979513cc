package quiz

import "time"

// Stage is the step a chat session is waiting on.
type Stage string

const (
	// StageTeamName waits for the team name.
	StageTeamName Stage = "team_name"
	// StageQuestion waits for an option tap.
	StageQuestion Stage = "question"
	// StagePhoto waits for a photo upload.
	StagePhoto Stage = "photo"
	// StageAwaitingNext waits for an explicit Next; the clock is paused.
	StageAwaitingNext Stage = "awaiting_next"
)

// AnswerRecord logs what happened on one question.
type AnswerRecord struct {
	QuestionID float64 `json:"question_id"`
	Position   int     `json:"position"`
	Selected   string  `json:"selected,omitempty"`
	Correct    bool    `json:"correct"`
	HintUsed   bool    `json:"hint_used"`
	Photo      bool    `json:"photo,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"`
}

// Session is the per-chat quiz state.
type Session struct {
	RunID  string
	ChatID int64
	Team   string
	Stage  Stage
	Index  int
	Score  int
	Clock  Clock
	// Hinted holds question positions whose hint penalty was charged.
	Hinted         map[int]bool
	PenaltySeconds int
	// PhotoCredited is set once the current photo task earned its point.
	PhotoCredited bool
	Answers       []AnswerRecord
	StartedAt     time.Time
	// Bank is the question set the run started on; reloads do not affect it.
	Bank *Bank
}

// Current returns the question the session is on.
func (s *Session) Current() (Question, bool) {
	return s.Bank.At(s.Index)
}

// Total is the score denominator.
func (s *Session) Total() int {
	return s.Bank.Len()
}

// Elapsed is the clock total plus hint penalties.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return s.Clock.Total(now) + time.Duration(s.PenaltySeconds)*time.Second
}

// Result is the final record of a finished run.
type Result struct {
	RunID          string         `json:"run_id" db:"run_id"`
	ChatID         int64          `json:"chat_id" db:"chat_id"`
	Team           string         `json:"team" db:"team"`
	Score          int            `json:"score" db:"score"`
	Total          int            `json:"total" db:"total"`
	ElapsedSeconds int64          `json:"elapsed_seconds" db:"elapsed_seconds"`
	PenaltySeconds int            `json:"penalty_seconds" db:"penalty_seconds"`
	TotalSeconds   int64          `json:"total_seconds" db:"total_seconds"`
	HintsUsed      int            `json:"hints_used" db:"hints_used"`
	StartedAt      time.Time      `json:"started_at" db:"started_at"`
	FinishedAt     time.Time      `json:"finished_at" db:"finished_at"`
	Answers        []AnswerRecord `json:"answers" db:"-"`
}

func newResult(s *Session, now time.Time) *Result {
	elapsed := int64(s.Clock.Total(now) / time.Second)
	return &Result{
		RunID:          s.RunID,
		ChatID:         s.ChatID,
		Team:           s.Team,
		Score:          s.Score,
		Total:          s.Total(),
		ElapsedSeconds: elapsed,
		PenaltySeconds: s.PenaltySeconds,
		TotalSeconds:   elapsed + int64(s.PenaltySeconds),
		HintsUsed:      len(s.Hinted),
		StartedAt:      s.StartedAt,
		FinishedAt:     now,
		Answers:        append([]AnswerRecord(nil), s.Answers...),
	}
}

// SessionInfo is a read-only summary used by admin tools.
type SessionInfo struct {
	ChatID   int64
	Team     string
	Stage    Stage
	Position int
	Total    int
	Score    int
	Elapsed  time.Duration
}
