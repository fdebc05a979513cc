package dispatch

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

func retryable(err error) bool {
	if netutil.ShouldRetry(err) {
		return true
	}
	status := httpStatus(err)
	return status == http.StatusTooManyRequests || status >= 500
}

// backoff grows linearly with the attempt. A Telegram flood error waits at
// least as long as the API asked.
func backoff(err error, base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(attempt)
	var flood tele.FloodError
	if errors.As(err, &flood) {
		delay = max(delay, time.Duration(flood.RetryAfter)*time.Second)
	}
	return delay
}

func httpStatus(err error) int {
	var coder StatusCoder
	var apiErr *tele.Error
	var flood tele.FloodError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &coder):
		return coder.StatusCode()
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &flood):
		return http.StatusTooManyRequests
	}
	return 0
}

// classifyError maps err to the err_code log field.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	var (
		dnsErr   *net.DNSError
		netErr   net.Error
		opErr    *net.OpError
		urlErr   *url.Error
		alertErr tls.AlertError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &urlErr) && urlErr.Timeout():
		return "timeout"
	case errors.As(err, &alertErr):
		return "tls"
	}
	switch status := httpStatus(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage redacts bot tokens from err.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return logger.SanitizeLimit(tokenRe.ReplaceAllString(err.Error(), "bot<redacted>"), 256)
}
