package coord

import (
	"encoding/json"
	"fmt"
)

// EventName is the name field of a pushed coordination event.
type EventName string

// Event names broadcast by the coordination service.
const (
	EventCoordinationActive  EventName = "coordination_active"
	EventCoordinationStopped EventName = "coordination_stopped"
	EventCoordinationFault   EventName = "coordination_fault"
	EventFollowingTriggered  EventName = "following_triggered"
	EventFollowingStopped    EventName = "following_stopped"
	EventFollowingPaused     EventName = "following_paused"
	EventSurveyStarted       EventName = "survey_started"
	EventSurveyButtonChanged EventName = "survey_button_state_changed"
	EventSurveyAbandoned     EventName = "survey_abandoned"
	EventSurveyCompleted     EventName = "survey_completed"
)

// Event is one decoded coordination event. Optional fields are only set for
// the event names that carry them.
type Event struct {
	Name      EventName `json:"event"`
	Reason    string    `json:"reason,omitempty"`
	Message   string    `json:"message,omitempty"`
	Enabled   *bool     `json:"enabled,omitempty"`
	Distance  *float64  `json:"distance,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
}

// DecodeEvent parses a coordination_event frame body.
func DecodeEvent(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode coordination event: %w", err)
	}
	if e.Name == "" {
		return Event{}, fmt.Errorf("coordination event without event name")
	}
	return e, nil
}

// Apply returns the state after one pushed event. Events are
// authoritative-but-partial: each updates exactly the flags it names.
// Faults and unknown events change nothing.
func Apply(s State, e Event) State {
	switch e.Name {
	case EventCoordinationActive:
		s.Active = true
	case EventCoordinationStopped:
		// A stop clears everything, matching the service's own teardown.
		s = State{}
	case EventFollowingTriggered:
		s.Active = true
		s.Following = true
	case EventFollowingStopped, EventFollowingPaused:
		s.Following = false
	case EventSurveyStarted:
		s.Surveying = true
		s.Paused = false
	case EventSurveyButtonChanged:
		if e.Enabled != nil {
			s.SurveyButtonEnabled = *e.Enabled
		}
	case EventSurveyAbandoned, EventSurveyCompleted:
		s.Surveying = false
		s.Paused = false
	case EventCoordinationFault:
		// Surfaced as a message only; the service may self-recover.
	}
	return s
}
