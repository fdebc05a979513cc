package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m3rciful/quizbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const maxUpdateBytes = 1 << 20

// UpdateProcessor is the part of *tele.Bot the server drives.
type UpdateProcessor interface {
	ProcessUpdate(u tele.Update)
	SetWebhook(w *tele.Webhook) error
	RemoveWebhook(dropPending ...bool) error
	Webhook() (*tele.Webhook, error)
}

// ServerOptions configures the public HTTP server.
type ServerOptions struct {
	Addr        string
	WebhookPath string
	// PublicURL is the externally reachable base URL; when empty it is
	// derived from the incoming request.
	PublicURL   string
	StaticDir   string
	DropPending bool
	Service     string
}

// Server exposes the webhook endpoint, webhook (de)registration, a health
// probe and static question assets.
type Server struct {
	bot  UpdateProcessor
	opts ServerOptions
	srv  *http.Server
	// seen is the base URL of the latest webhook request.
	seen atomic.Pointer[string]
}

// NewServer wires routes for bot.
func NewServer(bot UpdateProcessor, opts ServerOptions) *Server {
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/telegram"
	}
	if opts.Service == "" {
		opts.Service = "telegram-quiz"
	}
	s := &Server{bot: bot, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST "+opts.WebhookPath, s.handleUpdate)
	mux.HandleFunc("POST /set-webhook", s.handleSetWebhook)
	mux.HandleFunc("POST /delete-webhook", s.handleDeleteWebhook)
	if opts.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           withAccessLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background; listener failures are logged.
func (s *Server) Start() {
	go func() {
		logger.HTTP.Info("http listening",
			slog.String("event", "http.listen"),
			slog.String("listen", s.opts.Addr),
			slog.String("path", s.opts.WebhookPath),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.HTTP.Error("http server stopped",
				slog.String("event", "http.listen"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": s.opts.Service})
}

// handleUpdate always answers 200 so Telegram does not redeliver payloads we cannot parse.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd tele.Update
	body := http.MaxBytesReader(w, r.Body, maxUpdateBytes)
	if err := json.NewDecoder(body).Decode(&upd); err != nil {
		if !errors.Is(err, io.EOF) {
			logger.HTTP.Warn("malformed update",
				slog.String("event", "http.update"),
				slog.String("status", "skip"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	if s.opts.PublicURL == "" {
		base := s.baseURL(r)
		s.seen.Store(&base)
	}
	s.bot.ProcessUpdate(upd)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	url := s.baseURL(r) + s.opts.WebhookPath
	err := s.bot.SetWebhook(&tele.Webhook{
		AllowedUpdates: AllowedUpdates,
		DropUpdates:    s.opts.DropPending,
		Endpoint:       &tele.WebhookEndpoint{PublicURL: url},
	})
	if err != nil {
		logger.TG.Error("set webhook failed",
			slog.String("event", "tg.set_webhook"),
			slog.String("public_url", url),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	logger.TG.Info("webhook registered",
		slog.String("event", "tg.set_webhook"),
		slog.String("public_url", url),
	)
	info, err := s.bot.Webhook()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": url, "allowed_updates": AllowedUpdates})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": webhookInfo(info)})
}

// webhookInfo keeps the getWebhookInfo fields of w.
func webhookInfo(w *tele.Webhook) map[string]any {
	return map[string]any{
		"url":                    w.Listen,
		"pending_update_count":   w.PendingUpdates,
		"max_connections":        w.MaxConnections,
		"allowed_updates":        w.AllowedUpdates,
		"last_error_date":        w.ErrorUnixtime,
		"last_error_message":     w.ErrorMessage,
		"has_custom_certificate": w.HasCustomCert,
	}
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, _ *http.Request) {
	if err := s.bot.RemoveWebhook(s.opts.DropPending); err != nil {
		logger.TG.Error("delete webhook failed",
			slog.String("event", "tg.delete_webhook"),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	logger.TG.Info("webhook deleted", slog.String("event", "tg.delete_webhook"))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// BaseURL returns the configured public URL, else the base URL the latest
// webhook request arrived on. It is empty until one arrives.
func (s *Server) BaseURL() string {
	if s.opts.PublicURL != "" {
		return strings.TrimRight(s.opts.PublicURL, "/")
	}
	if base := s.seen.Load(); base != nil {
		return *base
	}
	return ""
}

func (s *Server) baseURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return strings.TrimRight(s.opts.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.HTTP.LogAttrs(r.Context(), slog.LevelDebug, "",
			slog.String("event", "http.request"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("http_code", rec.status),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}
