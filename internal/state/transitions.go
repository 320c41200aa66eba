package state

// validTransitions contains the permitted transitions out of each state.
// Returning to the main menu is always allowed.
var validTransitions = map[State][]State{
	StateMainMenu: {
		StateAwaitingChart,
		StateAwaitingDownload,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateMainMenu {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
