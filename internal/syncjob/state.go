package syncjob

import "fmt"

// State is the phase of a run.
type State int

const (
	Idle State = iota
	ResolvingURL
	Authenticating
	Downloading
	Parsing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ResolvingURL:
		return "resolving_url"
	case Authenticating:
		return "authenticating"
	case Downloading:
		return "downloading"
	case Parsing:
		return "parsing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s State) bool {
	return s == Completed || s == Failed
}

// isAllowedTransition encodes the linear pipeline: each phase moves to the
// next one, and any non-terminal phase may fail.
func isAllowedTransition(from, to State) bool {
	if IsTerminal(from) {
		return false
	}
	if to == Failed {
		return true
	}
	return to == from+1
}
