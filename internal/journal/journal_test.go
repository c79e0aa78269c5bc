package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundlink/console/internal/config"
)

// Compile-time interface checks.
var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Gorm)(nil)
)

func TestMemory_RecordAndQuery(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Init())
	defer m.Close()

	require.NoError(t, m.RecordCoordinationEvent("coordination_active", []byte(`{"event":"coordination_active"}`)))
	require.NoError(t, m.RecordCoordinationEvent("following_triggered", []byte(`{"event":"following_triggered"}`)))
	require.NoError(t, m.RecordConnectionTransition("drone", true))
	require.NoError(t, m.RecordCompletedSurvey(4, 4, false))

	events, err := m.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "following_triggered", events[0].Name, "newest first")
	assert.Equal(t, "coordination_active", events[1].Name)

	transitions := m.Transitions()
	require.Len(t, transitions, 1)
	assert.Equal(t, "drone", transitions[0].Vehicle)
	assert.True(t, transitions[0].Connected)

	surveys := m.Surveys()
	require.Len(t, surveys, 1)
	assert.Equal(t, 4, surveys[0].WaypointsVisited)
	assert.False(t, surveys[0].Abandoned)
}

func TestMemory_RecentEventsLimit(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordCoordinationEvent("survey_started", nil))
	}

	events, err := m.RecentEvents(3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestNewBackend_Memory(t *testing.T) {
	b, err := NewBackend(config.JournalConfig{Backend: "memory"}, nil)
	require.NoError(t, err)
	_, ok := b.(*Memory)
	assert.True(t, ok)
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := NewBackend(config.JournalConfig{Backend: "etcd"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown journal backend")
}
