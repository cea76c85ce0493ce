package switchboard

// State is the lifecycle state of the switchboard connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// transitions lists every legal move of the connection state machine.
// Disconnect may return to Idle from anywhere.
var transitions = map[State][]State{
	StateIdle:         {StateConnecting},
	StateConnecting:   {StateOpen, StateClosed, StateConnecting},
	StateOpen:         {StateClosed, StateConnecting},
	StateClosed:       {StateReconnecting, StateConnecting},
	StateReconnecting: {StateConnecting},
}

func canTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
