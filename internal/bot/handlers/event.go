package handlers

import (
	"context"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/menu"
	"github.com/Proton-105/stockbot/pkg/logger"
)

// EventFromContext builds a menu event for action from the update in c.
func EventFromContext(c telebot.Context, action menu.Action) menu.Event {
	ev := menu.Event{Action: action}
	if c == nil {
		return ev
	}

	if sender := c.Sender(); sender != nil {
		ev.UserID = sender.ID
		ev.Lang = sender.LanguageCode
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	} else {
		ev.ChatID = ev.UserID
	}

	if cb := c.Callback(); cb != nil {
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
		}
		return ev
	}

	if fields := strings.Fields(c.Text()); len(fields) > 1 && strings.HasPrefix(fields[0], "/") {
		ev.Args = fields[1:]
	}
	return ev
}

// UpdateContext returns a context carrying the update id as correlation id.
func UpdateContext(c telebot.Context) context.Context {
	ctx := context.Background()
	if c == nil {
		return ctx
	}
	if id := c.Update().ID; id != 0 {
		ctx = logger.WithCorrelationID(ctx, "upd-"+strconv.Itoa(id))
	}
	return ctx
}

// NewActionHandler forwards updates to flow as the fixed action.
func NewActionHandler(flow EventHandler, action menu.Action) Handler {
	return func(c telebot.Context) error {
		return flow.Handle(UpdateContext(c), EventFromContext(c, action))
	}
}

// NewCallbackHandler answers the callback query and forwards the parsed action to flow.
func NewCallbackHandler(flow EventHandler) Handler {
	return func(c telebot.Context) error {
		action := menu.ActionUnknown
		if cb := c.Callback(); cb != nil {
			action = menu.ParseCallback(cb.Data)
		}

		// stops the client-side spinner
		_ = c.Respond()

		return flow.Handle(UpdateContext(c), EventFromContext(c, action))
	}
}

// NewCommandHandler parses the command word of the message and forwards it to flow.
func NewCommandHandler(flow EventHandler) Handler {
	return func(c telebot.Context) error {
		fields := strings.Fields(c.Text())
		action := menu.ActionUnknown
		if len(fields) > 0 {
			action = menu.ParseCommand(fields[0])
		}
		return flow.Handle(UpdateContext(c), EventFromContext(c, action))
	}
}
