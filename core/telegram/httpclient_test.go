package telegram

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"syscall"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportReplaysBody(t *testing.T) {
	var bodies []string
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			return nil, syscall.ECONNRESET
		}
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})
	rt := &retryTransport{base: base, maxRetries: 2}

	req, _ := http.NewRequest(http.MethodPost, "http://sink.test/results", strings.NewReader(`{"team":"Owls"}`))
	resp, err := rt.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	if len(bodies) != 2 || bodies[1] != `{"team":"Owls"}` {
		t.Fatalf("bodies = %q", bodies)
	}
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	calls := 0
	boom := errors.New("tls: bad certificate")
	base := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, boom
	})
	rt := &retryTransport{base: base, maxRetries: 3}
	req, _ := http.NewRequest(http.MethodGet, "http://sink.test/", nil)
	if _, err := rt.RoundTrip(req); !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
