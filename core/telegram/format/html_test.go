package format

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	for _, tc := range []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{65 * time.Second, "1:05"},
		{3*time.Hour + 2*time.Minute + 9*time.Second, "3:02:09"},
		{1500 * time.Millisecond, "0:01"},
	} {
		if got := Clock(tc.in); got != tc.want {
			t.Fatalf("Clock(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeHTML(t *testing.T) {
	if got := Bold("<Foxes & Co>"); got != "<b>&lt;Foxes &amp; Co&gt;</b>" {
		t.Fatalf("Bold = %q", got)
	}
	if got := Lines("a", " ", "", "b"); got != "a\nb" {
		t.Fatalf("Lines = %q", got)
	}
}

func TestFitsCaption(t *testing.T) {
	short := make([]rune, CaptionLimit)
	for i := range short {
		short[i] = 'ж'
	}
	if !FitsCaption(string(short)) {
		t.Fatal("caption at the limit must fit")
	}
	if FitsCaption(string(short) + "x") {
		t.Fatal("caption over the limit must not fit")
	}
}
