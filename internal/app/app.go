// Package app assembles the quiz bot from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/quizbot/core/bootstrap"
	corecmd "github.com/m3rciful/quizbot/core/cmd"
	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/core/dispatch"
	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/internal/bot"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/results"

	tele "gopkg.in/telebot.v4"
)

// Options override infrastructure hooks, mainly for tests.
type Options struct {
	LoggerInit func(*coreconfig.Config) error
}

// App holds the wired components of a running bot.
type App struct {
	cfg      *Config
	infra    *bootstrap.Result
	engine   *quiz.Engine
	disp     *dispatch.Dispatcher
	sinks    []results.Sink
	handlers *bot.Handlers
	registry *tg.Registry
}

// Bootstrap adapts New to the command runner.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(cfg, Options{})
}

// New initialises logging, storage, the question bank and result sinks.
func New(cfg *Config, opts Options) (*App, error) {
	var dbCfg *coredatabase.Config
	if cfg.Results.Database {
		dbCfg = &cfg.Database
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   dbCfg,
		LoggerInit: opts.LoggerInit,
	})
	if err != nil {
		return nil, err
	}

	bank, err := quiz.LoadBank(cfg.Quiz.QuestionsPath)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	logger.Quiz.Info("questions loaded",
		slog.String("event", "quiz.load"),
		slog.String("source", bank.Source()),
		slog.Int("questions", bank.Len()),
		slog.Int("hidden", bank.Hidden()),
	)

	a := &App{
		cfg:      cfg,
		infra:    infra,
		registry: tg.NewRegistry(),
		engine: quiz.NewEngine(bank, quiz.Options{
			HintPenalty: time.Duration(cfg.HintPenaltySeconds()) * time.Second,
		}),
		disp: dispatch.NewDispatcher(dispatch.Options{
			Workers:    cfg.Results.Workers,
			MaxRetries: cfg.Results.Retries,
		}),
	}
	a.sinks = a.httpSinks()
	if infra.DB != nil {
		a.sinks = append(a.sinks, results.NewDatabaseSink(infra.DB))
	}

	a.handlers = bot.New(bot.Options{
		Engine:        a.engine,
		Dispatcher:    a.disp,
		QuestionsPath: cfg.Quiz.QuestionsPath,
		AssetsDir:     cfg.Quiz.AssetsDir,
		PublicURL:     cfg.Webhook.URL,
		AdminChats:    cfg.Quiz.AdminChatIDs,
	})
	if err := a.handlers.Register(a.registry); err != nil {
		a.close()
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	return a, nil
}

func (a *App) httpSinks() []results.Sink {
	if !a.cfg.Results.Webhook.Enabled() && !a.cfg.Results.Sheets.Enabled() {
		return nil
	}
	var sinks []results.Sink
	client := tg.BuildHTTPClient(0)
	if a.cfg.Results.Webhook.Enabled() {
		sinks = append(sinks, results.NewWebhookSink(a.cfg.Results.Webhook, client))
	}
	if a.cfg.Results.Sheets.Enabled() {
		sinks = append(sinks, results.NewSheetsSink(a.cfg.Results.Sheets, client))
	}
	return sinks
}

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	fb := bot.Fallbacks{}
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, fb.RateLimited()),
		Routes:      a.routes,
		StaticDir:   a.cfg.Quiz.AssetsDir,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			if rt.Server != nil {
				a.handlers.UseBaseURL(rt.Server.BaseURL)
			}
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.close()
		},
	}, nil
}

// routes runs once the bot exists: the admin notify sink and the photo
// forwards both send through it.
func (a *App) routes(b *tele.Bot) []tg.Route {
	a.handlers.Attach(b)
	sinks := a.sinks
	if a.cfg.NotifyEnabled() {
		if n := results.NewNotifySink(b, a.cfg.Quiz.AdminChatIDs); n != nil {
			sinks = append(sinks, n)
		}
	}
	pub := results.NewPublisher(a.disp, sinks...)
	a.handlers.SetPublisher(pub)
	logger.Results.Info("result sinks",
		slog.String("event", "results.sinks"),
		slog.Any("sinks", pub.Sinks()),
		slog.Int("retries", a.cfg.Results.Retries),
	)
	return bot.Routes(a.registry, a.cfg.Telegram.AdminID, bot.Fallbacks{})
}

// close drains pending deliveries before releasing the database.
func (a *App) close() error {
	a.disp.Close()
	if n := a.disp.ErrorCount(); n > 0 {
		logger.Results.Warn("deliveries failed during run",
			slog.String("event", "results.summary"),
			slog.Uint64("failed", n),
			slog.Uint64("done", a.disp.DoneCount()),
		)
	}
	if err := a.infra.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
