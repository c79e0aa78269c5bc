package coord

// Pending is the optimistic overlay set when the operator issues a command,
// before the server has confirmed the resulting state. It is display-only:
// safety decisions never read it as ground truth.
type Pending int

const (
	PendingNone Pending = iota
	PendingCoordinationStart
	PendingCoordinationStop
	PendingSurveyStart
	PendingSurveyPause
	PendingSurveyResume
)

// String returns the display name of the pending command.
func (p Pending) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingCoordinationStart:
		return "coordination-start"
	case PendingCoordinationStop:
		return "coordination-stop"
	case PendingSurveyStart:
		return "survey-start"
	case PendingSurveyPause:
		return "survey-pause"
	case PendingSurveyResume:
		return "survey-resume"
	default:
		return "unknown"
	}
}

// confirmedBy reports whether an authoritative state snapshot satisfies the
// pending command, at which point the overlay must be cleared.
func (p Pending) confirmedBy(s State) bool {
	switch p {
	case PendingCoordinationStart:
		return s.Active
	case PendingCoordinationStop:
		return !s.Active
	case PendingSurveyStart:
		return s.Surveying
	case PendingSurveyPause:
		return s.Surveying && s.Paused
	case PendingSurveyResume:
		return s.Surveying && !s.Paused
	default:
		return true
	}
}

// contradictedBy reports whether an event makes the pending command moot:
// the overlay clears because the authoritative signal went the other way.
func (p Pending) contradictedBy(e Event) bool {
	switch p {
	case PendingSurveyStart:
		return e.Name == EventCoordinationStopped || e.Name == EventSurveyAbandoned
	case PendingSurveyPause, PendingSurveyResume:
		// A survey that ends, either way, moots a pause or resume of it.
		return e.Name == EventCoordinationStopped ||
			e.Name == EventSurveyAbandoned ||
			e.Name == EventSurveyCompleted
	case PendingCoordinationStart:
		return e.Name == EventCoordinationStopped
	default:
		return false
	}
}

// mootedBy reports whether an authoritative status snapshot makes the
// pending command moot. Only rules that cannot misread the pre-confirmation
// state belong here: a snapshot without the survey running is the expected
// interim for survey-start, but final for pause and resume.
func (p Pending) mootedBy(s State) bool {
	switch p {
	case PendingSurveyPause, PendingSurveyResume:
		return !s.Surveying
	default:
		return false
	}
}
