package engine

// WorkerState tracks the single-controller attachment of a worker node.
// A worker cycles between the two states for its whole lifetime; there is no
// terminal state.
type WorkerState int

const (
	WorkerDisconnected WorkerState = iota
	WorkerConnected
)

func (s WorkerState) String() string {
	switch s {
	case WorkerDisconnected:
		return "disconnected"
	case WorkerConnected:
		return "connected"
	}
	return "unknown"
}
