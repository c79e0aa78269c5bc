package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent([]byte(`{"type":"coordination_event","event":"survey_button_state_changed","enabled":true,"distance":42.1,"threshold":50}`))
	require.NoError(t, err)
	assert.Equal(t, EventSurveyButtonChanged, e.Name)
	require.NotNil(t, e.Enabled)
	assert.True(t, *e.Enabled)
	require.NotNil(t, e.Distance)
	assert.Equal(t, 42.1, *e.Distance)
}

func TestDecodeEvent_MissingName(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"coordination_event"}`))
	assert.Error(t, err)
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := DecodeEvent([]byte(`{`))
	assert.Error(t, err)
}

func TestApply_Transitions(t *testing.T) {
	enabled := true
	disabled := false

	cases := []struct {
		name  string
		start State
		event Event
		want  State
	}{
		{
			name:  "activation",
			start: State{},
			event: Event{Name: EventCoordinationActive},
			want:  State{Active: true},
		},
		{
			name:  "stop clears everything",
			start: State{Active: true, Following: true, Surveying: true, SurveyButtonEnabled: true},
			event: Event{Name: EventCoordinationStopped},
			want:  State{},
		},
		{
			name:  "following triggered",
			start: State{Active: true},
			event: Event{Name: EventFollowingTriggered},
			want:  State{Active: true, Following: true},
		},
		{
			name:  "following paused during survey",
			start: State{Active: true, Following: true, Surveying: true},
			event: Event{Name: EventFollowingPaused},
			want:  State{Active: true, Surveying: true},
		},
		{
			name:  "survey started",
			start: State{Active: true, Following: true},
			event: Event{Name: EventSurveyStarted},
			want:  State{Active: true, Following: true, Surveying: true},
		},
		{
			name:  "survey button enabled",
			start: State{Active: true, Following: true},
			event: Event{Name: EventSurveyButtonChanged, Enabled: &enabled},
			want:  State{Active: true, Following: true, SurveyButtonEnabled: true},
		},
		{
			name:  "survey button disabled",
			start: State{Active: true, SurveyButtonEnabled: true},
			event: Event{Name: EventSurveyButtonChanged, Enabled: &disabled},
			want:  State{Active: true},
		},
		{
			name:  "survey abandoned",
			start: State{Active: true, Surveying: true, Paused: true},
			event: Event{Name: EventSurveyAbandoned, Reason: "distance_exceeded"},
			want:  State{Active: true},
		},
		{
			name:  "survey completed",
			start: State{Active: true, Surveying: true},
			event: Event{Name: EventSurveyCompleted},
			want:  State{Active: true},
		},
		{
			name:  "fault changes no flags",
			start: State{Active: true, Following: true},
			event: Event{Name: EventCoordinationFault, Reason: "Failed to arm drone."},
			want:  State{Active: true, Following: true},
		},
		{
			name:  "unknown event changes nothing",
			start: State{Active: true},
			event: Event{Name: "telemetry_lag"},
			want:  State{Active: true},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Apply(c.start, c.event))
		})
	}
}

func TestState_Phase(t *testing.T) {
	assert.Equal(t, PhaseInactive, State{}.Phase())
	assert.Equal(t, PhaseActive, State{Active: true}.Phase())
	assert.Equal(t, PhaseFollowing, State{Active: true, Following: true}.Phase())
	assert.Equal(t, PhaseSurveying, State{Active: true, Surveying: true}.Phase())
	assert.Equal(t, PhaseSurveyPaused, State{Active: true, Surveying: true, Paused: true}.Phase())
	// Surveying outranks following for display.
	assert.Equal(t, PhaseSurveying, State{Active: true, Following: true, Surveying: true}.Phase())
}
