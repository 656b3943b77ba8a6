// Package app drives an interactive tile walk: stepping, autoplay, reload.
package app

// State represents what the session is doing.
type State int

const (
	// StatePaused waits for manual steps.
	StatePaused State = iota
	// StateAutoplay steps once per spawn interval.
	StateAutoplay
	// StateComplete means the walk is exhausted or hit the tile limit.
	StateComplete
	// StateIdle means the walk could not start (e.g. start outside the camera).
	StateIdle
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StateAutoplay:
		return "autoplay"
	case StateComplete:
		return "complete"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}
