package transport

// State is the position of a Writer in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateBegan
	StateHeadersSent
	StateBodyStreaming
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBegan:
		return "began"
	case StateHeadersSent:
		return "headers_sent"
	case StateBodyStreaming:
		return "body_streaming"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// transitions lists the states reachable from each state. Every state but
// Ended can move to Ended; Close is valid from any state and End from any
// state except Idle. The Writer enforces the Idle case itself.
var transitions = map[State][]State{
	StateIdle:          {StateBegan, StateEnded},
	StateBegan:         {StateHeadersSent, StateEnded},
	StateHeadersSent:   {StateBodyStreaming, StateEnded},
	StateBodyStreaming: {StateBodyStreaming, StateEnded},
	StateEnded:         {}, // terminal
}

// ValidTransition reports whether a Writer may move from one state to another.
func ValidTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
