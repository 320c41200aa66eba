// Package menu implements the chat menu: state transitions, progress replies and the background
// jobs that produce charts and MTF exports.
package menu

import (
	"strings"

	"github.com/Proton-105/stockbot/internal/bot/keyboard"
)

// Action is what a user asked for, independent of how it arrived (command, button or text).
type Action int

const (
	ActionUnknown Action = iota
	ActionMenu
	ActionHelp
	ActionSwing
	ActionLongTerm
	ActionDownload
	ActionStatus
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionMenu:
		return "menu"
	case ActionHelp:
		return "help"
	case ActionSwing:
		return "swing"
	case ActionLongTerm:
		return "longterm"
	case ActionDownload:
		return "download"
	case ActionStatus:
		return "status"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is one inbound user interaction.
// MessageID is set for button presses and names the bot message carrying the keyboard.
type Event struct {
	Action    Action
	UserID    int64
	ChatID    int64
	MessageID int
	Args      []string
	Lang      string
}

// ParseCallback maps inline button payloads to actions.
func ParseCallback(data string) Action {
	unique, payload, err := keyboard.DecodeCallback(data)
	if err != nil {
		return ActionUnknown
	}

	unique = strings.ToLower(unique)
	payload = strings.ToLower(payload)

	switch {
	case unique == keyboard.UniqueMenu && payload == "":
		return ActionMenu
	case unique == keyboard.UniqueChart && payload == keyboard.DataSwing:
		return ActionSwing
	case unique == keyboard.UniqueChart && payload == keyboard.DataLongTerm:
		return ActionLongTerm
	case unique == keyboard.UniqueDownload && payload == keyboard.DataDownload:
		return ActionDownload
	}

	// payloads sent by keyboards of earlier releases
	if payload == "" {
		switch unique {
		case "swing":
			return ActionSwing
		case "longterm":
			return ActionLongTerm
		case "download":
			return ActionDownload
		case "back":
			return ActionMenu
		}
	}

	return ActionUnknown
}

// ParseCommand maps a slash command without its leading slash or bot mention to an action.
func ParseCommand(command string) Action {
	command = strings.ToLower(strings.TrimPrefix(command, "/"))
	if idx := strings.Index(command, "@"); idx != -1 {
		command = command[:idx]
	}

	switch command {
	case "start", "menu":
		return ActionMenu
	case "cancel":
		return ActionCancel
	case "help":
		return ActionHelp
	case "swing":
		return ActionSwing
	case "longterm":
		return ActionLongTerm
	case "download":
		return ActionDownload
	default:
		return ActionUnknown
	}
}
