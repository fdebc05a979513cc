// Package results delivers finished quiz runs to external sinks.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/m3rciful/quizbot/core/dispatch"
	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/quiz"
)

// Sink receives a finished run.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r *quiz.Result) error
}

// HTTPError is a non-2xx response from an HTTP sink.
type HTTPError struct {
	Sink   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := e.Sink + ": unexpected status " + strconv.Itoa(e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusCode lets the dispatcher classify the failure.
func (e *HTTPError) StatusCode() int { return e.Status }

var _ dispatch.StatusCoder = (*HTTPError)(nil)

// Publisher fans a result out to every sink on the dispatcher.
type Publisher struct {
	disp  *dispatch.Dispatcher
	sinks []Sink
}

// NewPublisher builds a publisher. Nil sinks are ignored.
func NewPublisher(disp *dispatch.Dispatcher, sinks ...Sink) *Publisher {
	p := &Publisher{disp: disp}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	return p
}

// Sinks lists the configured sink names.
func (p *Publisher) Sinks() []string {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Publish schedules delivery of r to every sink. It never blocks on a sink.
func (p *Publisher) Publish(ctx context.Context, r *quiz.Result) error {
	if p == nil || r == nil || len(p.sinks) == 0 {
		return nil
	}
	var errs []error
	for _, s := range p.sinks {
		sink := s
		err := p.disp.Enqueue(ctx, "results.deliver", sink.Name(), func(ctx context.Context) error {
			return sink.Deliver(ctx, r)
		})
		if err != nil {
			logger.LogEvent(ctx, logger.Results, slog.LevelWarn, "results.enqueue",
				slog.String("status", "fail"),
				slog.String("sink", sink.Name()),
				slog.String("run_id", r.RunID),
				slog.String("err", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
	}
	logger.LogEvent(ctx, logger.Results, slog.LevelInfo, "results.publish",
		slog.String("status", logger.Status(errors.Join(errs...))),
		slog.String("run_id", r.RunID),
		slog.String("team", r.Team),
		slog.Int("score", r.Score),
		slog.Int("total", r.Total),
		slog.Int("sinks", len(p.sinks)),
	)
	return errors.Join(errs...)
}

// checkResponse turns a non-2xx response into an HTTPError.
func checkResponse(sink string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &HTTPError{Sink: sink, Status: resp.StatusCode, Body: logger.SanitizeLimit(string(body), 200)}
}
