package menu

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/stockbot/internal/bot/keyboard"
	"github.com/Proton-105/stockbot/internal/chart"
	"github.com/Proton-105/stockbot/internal/delivery"
	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/internal/i18n"
	"github.com/Proton-105/stockbot/internal/jobs"
	"github.com/Proton-105/stockbot/internal/state"
)

// Catalog resolves a translator for a user's language.
type Catalog interface {
	Translator(lang string) i18n.Translator
}

// Submitter hands work to the background executor.
type Submitter interface {
	Submit(ctx context.Context, taskType string, payload []byte) error
}

// Config holds the menu settings taken from the application config.
type Config struct {
	DefaultSymbol string
	StaleAfter    time.Duration
}

// Flow reacts to user events. Long work is submitted as jobs and finished by Tasks.
type Flow struct {
	states    state.StateMachine
	executor  Submitter
	messenger delivery.Messenger
	catalog   Catalog
	errs      *errors.Handler
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

// NewFlow creates a Flow.
func NewFlow(states state.StateMachine, executor Submitter, messenger delivery.Messenger, catalog Catalog, errs *errors.Handler, cfg Config, log *slog.Logger) *Flow {
	if log == nil {
		log = slog.Default()
	}
	if errs == nil {
		errs = errors.NewHandler(log, false)
	}

	return &Flow{
		states:    states,
		executor:  executor,
		messenger: messenger,
		catalog:   catalog,
		errs:      errs,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Handle processes one event. Every path ends with a reply that offers a way back to the menu.
func (f *Flow) Handle(ctx context.Context, ev Event) error {
	t := f.catalog.Translator(ev.Lang)

	switch ev.Action {
	case ActionMenu:
		return f.showMenu(ctx, ev, t)
	case ActionCancel:
		if err := f.resetToMenu(ctx, ev.UserID); err != nil {
			return err
		}
		if _, err := f.messenger.SendText(ctx, ev.ChatID, t.T("cancel.done"), nil); err != nil {
			return err
		}
		return f.showMenu(ctx, Event{Action: ActionMenu, UserID: ev.UserID, ChatID: ev.ChatID, Lang: ev.Lang}, t)
	case ActionHelp:
		return f.showHelp(ctx, ev, t, "")
	case ActionSwing:
		return f.requestChart(ctx, ev, t, chart.Swing)
	case ActionLongTerm:
		return f.requestChart(ctx, ev, t, chart.LongTerm)
	case ActionDownload:
		return f.requestDownload(ctx, ev, t)
	case ActionStatus:
		_, err := f.messenger.SendText(ctx, ev.ChatID, t.T("busy.text"), keyboard.BackToMenu(t))
		return err
	default:
		f.log.InfoContext(ctx, "unrecognized input", slog.Int64("user_id", ev.UserID))
		return f.showHelp(ctx, ev, t, t.T("unknown.text"))
	}
}

func (f *Flow) showMenu(ctx context.Context, ev Event, t i18n.Translator) error {
	if err := f.resetToMenu(ctx, ev.UserID); err != nil {
		return err
	}

	text, markup := t.T("menu.welcome"), keyboard.MainMenu(t)
	if ev.MessageID != 0 {
		err := f.messenger.EditText(ctx, delivery.MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID}, text, markup)
		if err == nil {
			return nil
		}
		f.log.DebugContext(ctx, "menu edit failed, sending new message", slog.Any("error", err))
	}

	_, err := f.messenger.SendText(ctx, ev.ChatID, text, markup)
	return err
}

func (f *Flow) showHelp(ctx context.Context, ev Event, t i18n.Translator, prefix string) error {
	text := i18n.Format(t, "help.text", map[string]string{"Symbol": f.cfg.DefaultSymbol})
	if prefix != "" {
		text = prefix + "\n\n" + text
	}

	if _, err := f.messenger.SendText(ctx, ev.ChatID, text, nil); err != nil {
		return err
	}

	return f.showMenu(ctx, Event{Action: ActionMenu, UserID: ev.UserID, ChatID: ev.ChatID, Lang: ev.Lang}, t)
}

func (f *Flow) requestChart(ctx context.Context, ev Event, t i18n.Translator, horizon chart.Horizon) error {
	raw := f.cfg.DefaultSymbol
	if len(ev.Args) > 0 && ev.Args[0] != "" {
		raw = ev.Args[0]
	}

	symbol, err := chart.NormalizeSymbol(raw)
	if err != nil {
		text := i18n.Format(t, "chart.invalid_symbol", map[string]string{"Symbol": raw})
		_, sendErr := f.messenger.SendText(ctx, ev.ChatID, text, keyboard.BackToMenu(t))
		return sendErr
	}

	busy, err := f.busy(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if busy {
		_, err := f.messenger.SendText(ctx, ev.ChatID, t.T("busy.text"), keyboard.BackToMenu(t))
		return err
	}

	requestID := uuid.NewString()
	contextData := map[string]interface{}{
		state.ContextHorizon:   horizon.Slug(),
		state.ContextSymbol:    symbol,
		state.ContextChatID:    ev.ChatID,
		state.ContextRequestID: requestID,
	}
	if ok, err := f.transition(ctx, ev, t, state.StateAwaitingChart, contextData); !ok {
		return err
	}

	progress := i18n.Format(t, "chart.progress", map[string]string{"Horizon": horizon.Title(), "Symbol": symbol})
	ref := f.progress(ctx, ev, progress)

	payload, err := jobs.Encode(jobs.ChartRenderPayload{
		Request: jobs.Request{UserID: ev.UserID, ChatID: ev.ChatID, MessageID: ref.MessageID, Lang: t.Lang(), RequestID: requestID},
		Horizon: horizon.Slug(),
		Symbol:  symbol,
	})
	if err != nil {
		return f.abort(ctx, ev, t, err)
	}

	return f.submit(ctx, ev, t, jobs.TaskTypeChartRender, payload)
}

func (f *Flow) requestDownload(ctx context.Context, ev Event, t i18n.Translator) error {
	busy, err := f.busy(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if busy {
		_, err := f.messenger.SendText(ctx, ev.ChatID, t.T("busy.text"), keyboard.BackToMenu(t))
		return err
	}

	requestID := uuid.NewString()
	contextData := map[string]interface{}{state.ContextChatID: ev.ChatID, state.ContextRequestID: requestID}
	if ok, err := f.transition(ctx, ev, t, state.StateAwaitingDownload, contextData); !ok {
		return err
	}

	ref := f.progress(ctx, ev, t.T("download.progress"))

	payload, err := jobs.Encode(jobs.MTFExportPayload{
		Request: jobs.Request{UserID: ev.UserID, ChatID: ev.ChatID, MessageID: ref.MessageID, Lang: t.Lang(), RequestID: requestID},
	})
	if err != nil {
		return f.abort(ctx, ev, t, err)
	}

	return f.submit(ctx, ev, t, jobs.TaskTypeMTFExport, payload)
}

// busy reports whether the user has a request in flight. Awaiting states older than StaleAfter
// are treated as abandoned and reset.
func (f *Flow) busy(ctx context.Context, userID int64) (bool, error) {
	current, err := f.states.GetState(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, state.ErrStateNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get state: %w", err)
	}
	if current == nil || !current.CurrentState.IsAwaiting() {
		return false, nil
	}

	if f.cfg.StaleAfter > 0 && f.now().Sub(current.UpdatedAt) >= f.cfg.StaleAfter {
		f.log.WarnContext(ctx, "resetting stale request state",
			slog.Int64("user_id", userID),
			slog.String("state", string(current.CurrentState)),
			slog.Time("updated_at", current.UpdatedAt),
		)
		return false, f.resetToMenu(ctx, userID)
	}

	return true, nil
}

// transition moves the user into an awaiting state. It reports false after telling the user
// that another request holds the state.
func (f *Flow) transition(ctx context.Context, ev Event, t i18n.Translator, next state.State, contextData map[string]interface{}) (bool, error) {
	err := f.states.TransitionTo(ctx, ev.UserID, next, contextData)
	if err == nil {
		return true, nil
	}

	if stdErrors.Is(err, state.ErrInvalidTransition) || stdErrors.Is(err, state.ErrStateLocked) {
		_, sendErr := f.messenger.SendText(ctx, ev.ChatID, t.T("busy.text"), keyboard.BackToMenu(t))
		return false, sendErr
	}

	return false, fmt.Errorf("transition to %s: %w", next, err)
}

// progress replaces the pressed menu with the progress text, or sends it for typed commands.
func (f *Flow) progress(ctx context.Context, ev Event, text string) delivery.MessageRef {
	if ev.MessageID != 0 {
		ref := delivery.MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID}
		if err := f.messenger.EditText(ctx, ref, text, nil); err == nil {
			return ref
		}
	}

	ref, err := f.messenger.SendText(ctx, ev.ChatID, text, nil)
	if err != nil {
		f.log.WarnContext(ctx, "failed to send progress message", slog.Int64("chat_id", ev.ChatID), slog.Any("error", err))
	}
	return ref
}

func (f *Flow) submit(ctx context.Context, ev Event, t i18n.Translator, taskType string, payload []byte) error {
	err := f.executor.Submit(ctx, taskType, payload)
	if err == nil {
		return nil
	}

	if stdErrors.Is(err, jobs.ErrQueueFull) {
		err = errors.NewBusyError(err)
	}
	return f.abort(ctx, ev, t, err)
}

// abort reports a failed submission and returns the user to the main menu.
func (f *Flow) abort(ctx context.Context, ev Event, t i18n.Translator, cause error) error {
	f.errs.Handle(ctx, cause)

	key := "error.generic"
	var appErr *errors.AppError
	if stdErrors.As(cause, &appErr) && appErr.Code == errors.CodeBusy {
		key = "busy.queue_full"
	}

	if err := f.resetToMenu(ctx, ev.UserID); err != nil {
		f.log.ErrorContext(ctx, "failed to reset state", slog.Int64("user_id", ev.UserID), slog.Any("error", err))
	}

	_, err := f.messenger.SendText(ctx, ev.ChatID, t.T(key), keyboard.BackToMenu(t))
	return err
}

func (f *Flow) resetToMenu(ctx context.Context, userID int64) error {
	return resetToMenu(ctx, f.states, userID)
}

// resetToMenu sets MainMenu, retrying while another operation holds the user's state lock.
func resetToMenu(ctx context.Context, states state.StateMachine, userID int64) error {
	return errors.WithRetry(ctx, func() error {
		err := states.SetState(ctx, userID, state.StateMainMenu, nil)
		if stdErrors.Is(err, state.ErrStateLocked) {
			return errors.NewBusyError(err)
		}
		return err
	})
}
