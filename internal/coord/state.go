// Package coord mirrors the backend coordination service's state on the
// client. The mirror is server-owned: pushed events update the flags they
// name, periodic status polls overwrite the whole mirror, and operator
// commands only ever set a short-lived pending overlay that authoritative
// signals clear. The Reconciler's command methods are the control surface
// the operator UI calls.
package coord

// State is the mirrored coordination flag tuple. The zero value is the
// inactive state.
type State struct {
	Active              bool `json:"active"`
	Following           bool `json:"following"`
	Surveying           bool `json:"surveying"`
	Paused              bool `json:"paused"`
	SurveyButtonEnabled bool `json:"survey_button_enabled"`
}

// Phase is the coarse state-machine position derived from the flag tuple,
// used for display and transition checks.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseActive
	PhaseFollowing
	PhaseSurveying
	PhaseSurveyPaused
)

// String returns the display name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseActive:
		return "active"
	case PhaseFollowing:
		return "following"
	case PhaseSurveying:
		return "surveying"
	case PhaseSurveyPaused:
		return "survey-paused"
	default:
		return "unknown"
	}
}

// Phase collapses the flag tuple into the state machine position. Surveying
// outranks following; paused only applies while surveying.
func (s State) Phase() Phase {
	switch {
	case !s.Active:
		return PhaseInactive
	case s.Surveying && s.Paused:
		return PhaseSurveyPaused
	case s.Surveying:
		return PhaseSurveying
	case s.Following:
		return PhaseFollowing
	default:
		return PhaseActive
	}
}
