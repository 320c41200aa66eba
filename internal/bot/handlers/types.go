// Package handlers adapts telebot updates to menu events.
package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/menu"
)

// Handler processes one update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// EventHandler is the menu flow as seen by the transport.
type EventHandler interface {
	Handle(ctx context.Context, ev menu.Event) error
}
