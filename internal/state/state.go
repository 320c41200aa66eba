package state

import "time"

// State represents a menu state-machine state.
type State string

const (
	// StateMainMenu indicates that the user is looking at the main menu and no request is in flight.
	StateMainMenu State = "main_menu"
	// StateAwaitingChart indicates that a chart request is being generated for the user.
	StateAwaitingChart State = "awaiting_chart"
	// StateAwaitingDownload indicates that the MTF export is being generated for the user.
	StateAwaitingDownload State = "awaiting_download"
)

// Context keys stored alongside awaiting states.
const (
	ContextHorizon   = "horizon"
	ContextSymbol    = "symbol"
	ContextChatID    = "chat_id"
	ContextRequestID = "request_id"
)

// UserState captures the current menu state for a Telegram user.
type UserState struct {
	UserID       int64                  `json:"user_id"`
	CurrentState State                  `json:"current_state"`
	Context      map[string]interface{} `json:"context"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// IsAwaiting reports whether the state represents a request in flight.
func (s State) IsAwaiting() bool {
	return s == StateAwaitingChart || s == StateAwaitingDownload
}
