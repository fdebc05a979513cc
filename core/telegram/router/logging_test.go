package router

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type codedErr struct{}

func (codedErr) Error() string { return "quiz bank empty" }
func (codedErr) Code() string  { return "bank empty" }

type sinkError struct{ msg string }

func (e *sinkError) Error() string { return e.msg }

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/start":       "start",
		" Start Quiz ": "start_quiz",
		"/":            "unknown",
		"":             "unknown",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Fatalf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&tele.Error{Code: 403, Description: "bot was blocked"}, "TG_403"},
		{codedErr{}, "BANK_EMPTY"},
		{&sinkError{"webhook down"}, "SINKERROR"},
		{errors.New("plain"), "ERRORSTRING"},
	}
	for _, tc := range cases {
		if got := deriveErrorCode(tc.err); got != tc.want {
			t.Fatalf("deriveErrorCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
