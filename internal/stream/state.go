package stream

// State is the lifecycle position of a Session.
type State int

// Session states. Completed, Failed and Cancelled are terminal.
const (
	StateOpened State = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateOpened:    "opened",
	StateStreaming: "streaming",
	StateCompleted: "completed",
	StateFailed:    "failed",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}
