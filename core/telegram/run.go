package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Middlewares []Middleware
	// Routes is called once the bot exists so handlers can capture it.
	Routes func(bot *tele.Bot) []Route

	// StaticDir is served under /static/ by the HTTP server.
	StaticDir string

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
	Server   *Server
}

// NewBot builds a synchronous bot: handlers run inside ProcessUpdate so
// replies to one update are sent in order before the webhook call returns.
func NewBot(cfg *coreconfig.Config, offline bool) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:       cfg.Telegram.Token,
		URL:         cfg.Telegram.APIURL,
		Poller:      BuildPoller(cfg),
		Client:      BuildHTTPClient(cfg.Telegram.SendRetries),
		Synchronous: true,
		Offline:     offline,
		OnError:     logHandlerError,
	})
}

// Compose registers middlewares and routes on bot. Middlewares must be
// registered first since Telebot binds them at Handle time.
func Compose(bot *tele.Bot, mws []Middleware, routes []Route) {
	for _, mw := range mws {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
}

func logHandlerError(err error, c tele.Context) {
	ctx := logger.Background()
	if c != nil {
		if stored, ok := tghelpers.ContextFrom(c); ok {
			ctx = stored
		}
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelError, "handler.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	buildStart := time.Now()
	bot, err := NewBot(cfg, false)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	switch cfg.Telegram.RunMode {
	case coreconfig.RunModeWebhook:
		logger.TG.Info("webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", "webhook"),
			slog.String("public_url", cfg.WebhookURL()),
			slog.Bool("auto_register", cfg.Webhook.AutoRegister),
			slog.Duration("duration", buildTook),
		)
	default:
		logger.TG.Info("polling mode",
			slog.String("event", "mode"),
			slog.String("mode", "polling"),
			slog.Duration("duration", buildTook),
		)
		if !opts.DisableWebhookCleanup {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.TG.Warn("failed to delete webhook",
					slog.String("event", "tg.delete_webhook"),
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}
	}

	var routes []Route
	if opts.Routes != nil {
		routes = opts.Routes(bot)
	}
	Compose(bot, opts.Middlewares, routes)
	InitBotCommands(bot, reg)

	server := NewServer(bot, ServerOptions{
		Addr:        cfg.ListenAddr(),
		WebhookPath: cfg.Webhook.Path,
		PublicURL:   cfg.Webhook.URL,
		StaticDir:   opts.StaticDir,
		DropPending: cfg.Webhook.DropPending,
	})
	rt := Runtime{Bot: bot, Registry: reg, Server: server}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	server.Start()
	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpErr := server.Shutdown(shutdownCtx)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(shutdownCtx, rt)
	}

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, httpErr, stopErr)
}
