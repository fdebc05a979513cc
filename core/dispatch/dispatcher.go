// Package dispatch runs outbound side effects on a bounded worker pool so
// slow third parties never block update handling.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("dispatch: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("dispatch: queue full")
)

// Options controls the behaviour of the dispatcher.
type Options struct {
	QueueSize int
	Workers   int
	// MaxRetries is the number of extra attempts for retryable errors.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
}

// Func is the unit of work. It must honour ctx cancellation.
type Func func(ctx context.Context) error

type job struct {
	ctx    context.Context
	action string
	target string
	run    Func
}

// Dispatcher executes jobs asynchronously with optional retries.
type Dispatcher struct {
	opts Options
	jobs chan job
	stop chan struct{}
	mu   sync.RWMutex
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
	done atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. ctx supplies log
// metadata only; its cancellation does not abort the job.
func (d *Dispatcher) Enqueue(ctx context.Context, action, target string, run Func) error {
	if run == nil {
		return errors.New("dispatch: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), action: action, target: target, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// DoneCount returns the number of finished jobs, failed ones included.
func (d *Dispatcher) DoneCount() uint64 {
	return d.done.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.stop)
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
		d.done.Add(1)
	}
}

func (d *Dispatcher) handleJob(j job) {
	start := time.Now()
	attempts, err := d.runWithRetry(j)
	attrs := jobAttrs(j)
	if err == nil {
		if attempts > 1 {
			attrs = append(attrs, slog.Int("attempt", attempts))
		}
		logger.LogEvent(j.ctx, logger.Dispatch, slog.LevelDebug, "job.done",
			append(attrs, slog.Duration("duration", logger.Took(start)))...)
		return
	}

	d.errs.Add(1)
	logger.LogEvent(j.ctx, logger.Dispatch, slog.LevelError, "job.fail",
		append(attrs,
			slog.String("status", "fail"),
			slog.String("err", sanitizeErrorMessage(err)),
			slog.String("err_code", classifyError(err)),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.Took(start)),
		)...,
	)
}

// runWithRetry runs the job until it succeeds, fails permanently, runs out
// of attempts or hits MaxDuration. It returns the attempts made.
func (d *Dispatcher) runWithRetry(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		err := j.run(ctx)
		if err == nil || attempt == limit || !retryable(err) {
			return attempt, err
		}
		delay := backoff(err, d.opts.RetryBackoff, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		logger.LogEvent(j.ctx, logger.Dispatch, slog.LevelDebug, "job.retry",
			append(jobAttrs(j), slog.Int("attempt", attempt), slog.Duration("backoff", delay))...)
	}
}

func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.target != "" {
		attrs = append(attrs, slog.String("sink", j.target))
	}
	return attrs
}
