package core

// Action is a semantic client action, abstracted from physical key presses.
type Action int

const (
	ActionNone      Action = iota
	ActionTurnLeft         // A, Left arrow - spin the shield anticlockwise
	ActionTurnRight        // D, Right arrow - spin the shield clockwise
	ActionStop             // S, Down arrow, Space - stop the shield
	ActionScores           // Tab - toggle the high-score table
	ActionRejoin           // R - join again after dying
	ActionQuit             // Q, Ctrl+C - leave the arena
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "None"
	case ActionTurnLeft:
		return "TurnLeft"
	case ActionTurnRight:
		return "TurnRight"
	case ActionStop:
		return "Stop"
	case ActionScores:
		return "Scores"
	case ActionRejoin:
		return "Rejoin"
	case ActionQuit:
		return "Quit"
	default:
		return "Unknown"
	}
}

// Spin returns the shield momentum direction an action asks for:
// -1, 0 or 1, and whether the action concerns the shield at all.
func (a Action) Spin() (int, bool) {
	switch a {
	case ActionTurnLeft:
		return -1, true
	case ActionTurnRight:
		return 1, true
	case ActionStop:
		return 0, true
	default:
		return 0, false
	}
}
