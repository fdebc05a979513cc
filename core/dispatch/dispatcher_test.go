package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2})
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		if err := d.Enqueue(context.Background(), "test", "noop", func(context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	d.Close()
	if ran.Load() != 10 || d.DoneCount() != 10 || d.ErrorCount() != 0 {
		t.Fatalf("ran=%d done=%d errs=%d", ran.Load(), d.DoneCount(), d.ErrorCount())
	}
	if err := d.Enqueue(context.Background(), "test", "noop", func(context.Context) error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("enqueue after close = %v", err)
	}
}

func TestDispatcherNoRetryByDefault(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "test", "flaky", func(context.Context) error {
		calls.Add(1)
		return statusErr(503)
	})
	d.Close()
	if calls.Load() != 1 || d.ErrorCount() != 1 {
		t.Fatalf("calls=%d errs=%d", calls.Load(), d.ErrorCount())
	}
}

func TestDispatcherRetriesServerErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "test", "flaky", func(context.Context) error {
		if calls.Add(1) < 3 {
			return statusErr(502)
		}
		return nil
	})
	_ = d.Enqueue(context.Background(), "test", "bad", func(context.Context) error {
		return statusErr(400)
	})
	d.Close()
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errs = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	block := func(context.Context) error {
		<-release
		return nil
	}
	var full bool
	for i := 0; i < 5; i++ {
		if err := d.Enqueue(context.Background(), "test", "block", block); errors.Is(err, ErrQueueFull) {
			full = true
		}
	}
	close(release)
	d.Close()
	if !full {
		t.Fatal("expected ErrQueueFull")
	}
}

func TestClassifyError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{statusErr(500), "http_5xx"},
		{statusErr(404), "http_4xx"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("x"), "unknown"},
	} {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if got := sanitizeErrorMessage(errors.New("post https://x/bot123:ABC_def/sendMessage")); got != "post https://x/bot<redacted>/sendMessage" {
		t.Fatalf("sanitize = %q", got)
	}
}

func TestBackoff(t *testing.T) {
	if got := backoff(errors.New("503"), time.Second, 3); got != 3*time.Second {
		t.Fatalf("linear backoff = %v", got)
	}
	if got := backoff(tele.FloodError{RetryAfter: 10}, time.Second, 1); got != 10*time.Second {
		t.Fatalf("flood backoff = %v", got)
	}
}
