package results

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/quizbot/internal/quiz"
)

const insertResult = `INSERT INTO quiz_results
	(run_id, chat_id, team, score, total, elapsed_seconds, penalty_seconds, total_seconds, hints_used, started_at, finished_at, answers)
VALUES
	(:run_id, :chat_id, :team, :score, :total, :elapsed_seconds, :penalty_seconds, :total_seconds, :hints_used, :started_at, :finished_at, :answers)`

type resultRow struct {
	quiz.Result
	AnswersJSON string `db:"answers"`
}

// DatabaseSink inserts results into the quiz_results table.
type DatabaseSink struct {
	db *sqlx.DB
}

// NewDatabaseSink builds the sink on an open, migrated connection.
func NewDatabaseSink(db *sqlx.DB) *DatabaseSink {
	return &DatabaseSink{db: db}
}

// Name implements Sink.
func (s *DatabaseSink) Name() string { return "database" }

// Deliver implements Sink.
func (s *DatabaseSink) Deliver(ctx context.Context, r *quiz.Result) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("database: encode answers: %w", err)
	}
	row := resultRow{Result: *r, AnswersJSON: string(answers)}
	if _, err := s.db.NamedExecContext(ctx, insertResult, row); err != nil {
		return fmt.Errorf("database: insert result: %w", err)
	}
	return nil
}
