package playback

// State is a step of the playback request state machine.
type State int

const (
	Idle State = iota
	ValidatingContext
	Resolving
	Fetching
	Normalizing
	Playing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ValidatingContext:
		return "validating_context"
	case Resolving:
		return "resolving"
	case Fetching:
		return "fetching"
	case Normalizing:
		return "normalizing"
	case Playing:
		return "playing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a request.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
