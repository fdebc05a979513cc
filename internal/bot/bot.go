// Package bot adapts the quiz engine to Telegram updates.
package bot

import (
	"fmt"
	"time"

	"github.com/m3rciful/quizbot/core/dispatch"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/router"
	"github.com/m3rciful/quizbot/core/telegram/ui"
	"github.com/m3rciful/quizbot/internal/quiz"
	"github.com/m3rciful/quizbot/internal/results"

	tele "gopkg.in/telebot.v4"
)

// Options configures the handlers.
type Options struct {
	Engine    *quiz.Engine
	Publisher *results.Publisher
	// Dispatcher carries admin photo forwards; nil sends them inline.
	Dispatcher *dispatch.Dispatcher

	QuestionsPath string
	AssetsDir     string
	// PublicURL is the base for asset links that are not local files.
	PublicURL  string
	AdminChats []int64
}

// Handlers holds the Telegram side of the quiz.
type Handlers struct {
	opts    Options
	bot     *tele.Bot
	baseURL func() string
}

// New returns handlers for opts.
func New(opts Options) *Handlers {
	return &Handlers{opts: opts}
}

// Attach gives the handlers the running bot for admin forwards and deep links.
func (h *Handlers) Attach(bot *tele.Bot) { h.bot = bot }

// UseBaseURL sets the asset link base used when PublicURL is empty.
// Call it before updates flow.
func (h *Handlers) UseBaseURL(fn func() string) { h.baseURL = fn }

// SetPublisher replaces the result publisher. Call it before updates flow.
func (h *Handlers) SetPublisher(p *results.Publisher) { h.opts.Publisher = p }

// Register adds commands, callbacks and message handlers to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	penalty := int(h.opts.Engine.HintPenalty() / time.Second)

	reg.RegisterCommand("/start", tg.Command{Handler: h.start, Description: "Start the quiz", Aliases: []string{"start"}})
	reg.RegisterCommand("/restart", tg.Command{Handler: h.restart, Description: "Start over", Aliases: []string{"restart"}})
	reg.RegisterCommand("/hint", tg.Command{
		Handler:     h.hintCommand,
		Description: fmt.Sprintf("Show a hint (+%ds once per question)", penalty),
		Aliases:     []string{"hint"},
	})
	reg.RegisterCommand("/next", tg.Command{Handler: h.nextCommand, Description: "Go to the next question", Aliases: []string{"next"}})
	reg.RegisterCommand("/status", tg.Command{Handler: h.status, Description: "Show your progress"})
	reg.RegisterCommand("/help", tg.Command{Handler: h.help, Description: "How to play"})

	reg.RegisterCommand("/reload", tg.Command{Handler: h.reload, Description: "Reload questions", AdminOnly: true})
	reg.RegisterCommand("/sessions", tg.Command{Handler: h.sessions, Description: "List active sessions", AdminOnly: true})
	reg.RegisterCommand("/qr", tg.Command{Handler: h.qr, Description: "QR code for a team start link", AdminOnly: true})

	for key, handler := range map[string]tele.HandlerFunc{
		quiz.ActionAnswer: h.answerCallback,
		quiz.ActionHint:   h.hintCallback,
		quiz.ActionNext:   h.nextCallback,
	} {
		if err := reg.RegisterCallback(key, handler); err != nil {
			return err
		}
	}

	reg.SetTextFallback(h.text)
	reg.SetPhotoHandler(h.photo)
	return nil
}

// Routes wires the registry to Telebot endpoints: slash commands, the
// callback dispatcher, then text and photo messages.
func Routes(reg *tg.Registry, adminID int64, fb ui.FallbackProvider) []tg.Route {
	reg.SetCallbackNotFound(fb.UnknownCallback())
	cmdOpts := router.CommandRouteOptions{AdminID: adminID, OnAdminReject: fb.AdminRejected()}
	routes := router.CommandRoutes(reg, cmdOpts)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Commands:     cmdOpts,
		UnknownText:  fb.UnknownText(),
		UnknownPhoto: fb.UnknownPhoto(),
	})...)
}
