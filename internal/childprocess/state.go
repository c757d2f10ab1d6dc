package childprocess

import "fmt"

// State is the lifecycle state of a ChildProcess.
type State int

const (
	// StateConnecting is the state before the process has been started.
	StateConnecting State = iota
	// StateConnected means the process started and the IPC channel is open.
	StateConnected
	// StateDisconnecting means Disconnect was called and teardown is in progress.
	StateDisconnecting
	// StateDisconnected means there is no channel: it was closed, never
	// existed, or the process failed to start.
	StateDisconnected
	// StateExited means the process was reaped and the channel is gone.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal returns true for StateExited.
func (s State) IsTerminal() bool {
	return s == StateExited
}

var transitions = map[State][]State{
	StateConnecting:    {StateConnected, StateDisconnected},
	StateConnected:     {StateDisconnecting, StateDisconnected},
	StateDisconnecting: {StateDisconnected},
	StateDisconnected:  {StateExited},
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
