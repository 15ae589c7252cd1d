package bridge

// State is the lifecycle state of a bridge.
type State int

const (
	// StateIdle means no session exists yet.
	StateIdle State = iota
	// StateActive means the shell is running.
	StateActive
	// StateTerminating means shutdown has begun; output is being drained.
	StateTerminating
	// StateTerminated means the terminal notice was emitted; Run returns.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
