package sim

// State is the lifecycle state of a Simulation.
type State int32

const (
	StateUninitialized State = iota
	StatePaused
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePaused:
		return "paused"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
