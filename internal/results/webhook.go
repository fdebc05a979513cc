package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/icholy/digest"

	"github.com/m3rciful/quizbot/internal/quiz"
)

// Webhook auth schemes.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthDigest = "digest"
)

// WebhookConfig configures the JSON webhook sink.
type WebhookConfig struct {
	URL      string `yaml:"url" envconfig:"RESULTS_WEBHOOK_URL"`
	Auth     string `yaml:"auth" envconfig:"RESULTS_WEBHOOK_AUTH"`
	Token    string `yaml:"token" envconfig:"RESULTS_WEBHOOK_TOKEN"`
	User     string `yaml:"user" envconfig:"RESULTS_WEBHOOK_USER"`
	Password string `yaml:"password" envconfig:"RESULTS_WEBHOOK_PASSWORD"`
}

// Enabled reports whether a URL is set.
func (c WebhookConfig) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

// Normalize lowercases the auth scheme and checks credentials.
func (c *WebhookConfig) Normalize() error {
	c.URL = strings.TrimSpace(c.URL)
	c.Auth = strings.ToLower(strings.TrimSpace(c.Auth))
	if c.Auth == "" {
		c.Auth = AuthNone
	}
	if !c.Enabled() {
		return nil
	}
	switch c.Auth {
	case AuthNone:
	case AuthBearer:
		if c.Token == "" {
			return errors.New("results.webhook: bearer auth requires a token")
		}
	case AuthBasic, AuthDigest:
		if c.User == "" {
			return fmt.Errorf("results.webhook: %s auth requires a user", c.Auth)
		}
	default:
		return fmt.Errorf("results.webhook: unknown auth %q", c.Auth)
	}
	return nil
}

// WebhookSink POSTs the JSON result to a URL.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhookSink builds the sink on top of client. Digest auth wraps the
// client transport so the challenge round trip is handled transparently.
func NewWebhookSink(cfg WebhookConfig, client *http.Client) *WebhookSink {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Auth == AuthDigest {
		wrapped := *client
		wrapped.Transport = &digest.Transport{
			Username:  cfg.User,
			Password:  cfg.Password,
			Transport: client.Transport,
		}
		client = &wrapped
	}
	return &WebhookSink{cfg: cfg, client: client}
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, r *quiz.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("webhook: encode result: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch s.cfg.Auth {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	case AuthBasic:
		req.SetBasicAuth(s.cfg.User, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return checkResponse(s.Name(), resp, body)
}
