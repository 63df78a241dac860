package recovery

type State int32

const (
	// Command created, nothing has run yet
	StatePending State = iota

	// Resync tool (pg_basebackup or pg_rewind) is running
	StateRunningResync

	// Resync finished, postgresql.conf is being patched
	StateUpdatingConfig

	// Configuration patched, segment is being started
	StateStartingSegment

	// Segment resynchronized and started
	StateSucceeded

	// Some step failed, see the outcome
	StateFailed
)

var stateNames = map[State]string{
	StatePending:         "pending",
	StateRunningResync:   "running-resync",
	StateUpdatingConfig:  "updating-config",
	StateStartingSegment: "starting-segment",
	StateSucceeded:       "succeeded",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
