package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/bot/handlers"
	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/internal/idempotency"
	"github.com/Proton-105/stockbot/internal/menu"
	"github.com/Proton-105/stockbot/internal/middleware"
	"github.com/Proton-105/stockbot/internal/state"
	"github.com/Proton-105/stockbot/pkg/config"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dependencies are the application services the bot routes updates to.
type Dependencies struct {
	Flow       handlers.EventHandler
	States     state.StateMachine
	RateLimit  *middleware.RateLimitMiddleware
	Dedup      *idempotency.Guard
	ErrHandler *errors.Handler
}

// Bot wraps telebot.Bot with the router and per-user sequencing of updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.BotConfig
	router     *Router
	dispatcher *Dispatcher
	sequencer  *Sequencer
	errHandler *errors.Handler
	started    atomic.Bool
}

// NewTelebot creates the telebot client for the configured mode. Handlers run synchronously;
// concurrency comes from the Sequencer.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:       cfg.Token,
		Synchronous: true,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", c.Sender().ID))
			}
			log.Error("telebot error", attrs...)
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			SecretToken: cfg.WebhookSecret,
			Endpoint:    &telebot.WebhookEndpoint{PublicURL: webhookURL(cfg)},
		}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.PollTimeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New wires routing for tb.
func New(tb *telebot.Bot, cfg config.BotConfig, log *slog.Logger, deps Dependencies) (*Bot, error) {
	if tb == nil {
		return nil, fmt.Errorf("telebot client is required")
	}
	if deps.Flow == nil || deps.States == nil {
		return nil, fmt.Errorf("flow and state machine are required")
	}
	if log == nil {
		log = slog.Default()
	}

	errHandler := deps.ErrHandler
	if errHandler == nil {
		errHandler = errors.NewHandler(log, false)
	}

	dispatcher := NewDispatcher(deps.States, log)
	router := NewRouter(dispatcher, log)

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		router:     router,
		dispatcher: dispatcher,
		errHandler: errHandler,
	}
	b.sequencer = NewSequencer(router.Route, log)

	b.setupRouter(deps.Flow)

	if deps.Dedup != nil {
		b.telebot.Use(middleware.Dedup(deps.Dedup, log))
	}
	if deps.RateLimit != nil {
		b.telebot.Use(deps.RateLimit.Handle)
	}
	b.telebot.Handle(telebot.OnText, b.sequencer.Enqueue)
	b.telebot.Handle(telebot.OnCallback, b.sequencer.Enqueue)

	return b, nil
}

// Start publishes the command list and runs the update loop until Stop.
func (b *Bot) Start() {
	if err := b.telebot.SetCommands(commandList); err != nil {
		b.log.Warn("failed to publish bot commands", slog.Any("error", err))
	}

	b.started.Store(true)
	b.log.Info("telegram bot started", slog.String("mode", b.mode()))
	b.telebot.Start()
}

// Stop ends the update loop and waits for queued updates to be handled.
func (b *Bot) Stop(ctx context.Context) error {
	b.log.Info("stopping telegram bot...")
	if b.started.Load() {
		b.telebot.Stop()
	}
	return b.sequencer.Close(ctx)
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// WebhookHandler accepts Telegram updates over HTTP. It acknowledges as soon as the update is
// queued; processing continues in the sequencer.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.cfg.WebhookSecret != "" && r.Header.Get(secretTokenHeader) != b.cfg.WebhookSecret {
			b.log.Warn("webhook request with invalid secret token", slog.String("remote_addr", r.RemoteAddr))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var update telebot.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			b.log.Warn("cannot decode webhook update", slog.Any("error", err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		b.telebot.ProcessUpdate(update)
		w.WriteHeader(http.StatusOK)
	})
}

func (b *Bot) setupRouter(flow handlers.EventHandler) {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Metrics)

	commandHandler := handlers.NewCommandHandler(flow)
	for _, cmd := range []string{
		CommandStart, CommandMenu, CommandHelp, CommandCancel,
		CommandSwing, CommandLongTerm, CommandDownload,
	} {
		b.router.RegisterCommand(cmd, commandHandler)
	}

	callbackHandler := handlers.NewCallbackHandler(flow)
	for _, prefix := range callbackPrefixes {
		b.router.RegisterCallback(prefix, callbackHandler)
	}
	b.router.SetDefaultCallback(callbackHandler)

	b.router.SetDefault(handlers.NewActionHandler(flow, menu.ActionUnknown))

	b.dispatcher.RegisterStateHandler(state.StateMainMenu, handlers.NewActionHandler(flow, menu.ActionUnknown))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingChart, handlers.NewActionHandler(flow, menu.ActionStatus))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingDownload, handlers.NewActionHandler(flow, menu.ActionStatus))
}

func (b *Bot) mode() string {
	if b.cfg.Mode == "" {
		return "polling"
	}
	return b.cfg.Mode
}

func webhookURL(cfg config.BotConfig) string {
	return strings.TrimRight(cfg.WebhookURL, "/") + cfg.WebhookPath
}
