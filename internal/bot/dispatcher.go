package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/bot/handlers"
	"github.com/Proton-105/stockbot/internal/state"
)

// Dispatcher routes free text to a handler chosen by the user's menu state.
type Dispatcher struct {
	fsm           state.StateMachine
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(fsm state.StateMachine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		fsm:           fsm,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Dispatch runs the handler of the user's current state. A user without stored state is in the
// main menu. It reports false when no handler is registered for the state.
func (d *Dispatcher) Dispatch(c telebot.Context) (bool, error) {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return false, nil
	}

	currentState, err := d.currentState(c.Sender().ID)
	if err != nil {
		return false, err
	}

	handler := d.getHandler(currentState)
	if handler == nil {
		d.log.Info("no handler registered for state", "state", currentState, "user_id", c.Sender().ID)
		return false, nil
	}

	return true, handler(c)
}

func (d *Dispatcher) currentState(userID int64) (state.State, error) {
	userState, err := d.fsm.GetState(context.Background(), userID)
	switch {
	case errors.Is(err, state.ErrStateNotFound):
		return state.StateMainMenu, nil
	case err != nil:
		return "", err
	case userState == nil:
		return state.StateMainMenu, nil
	default:
		return userState.CurrentState, nil
	}
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
