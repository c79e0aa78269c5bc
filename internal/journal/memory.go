package journal

import (
	"sync"
	"time"

	"gorm.io/datatypes"
)

// Memory is an in-process journal for tests and journaling-disabled runs.
type Memory struct {
	mu          sync.Mutex
	events      []CoordinationEvent
	transitions []ConnectionTransition
	surveys     []CompletedSurvey
	nextID      uint
}

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) Init() error  { return nil }
func (m *Memory) Close() error { return nil }

func (m *Memory) RecordCoordinationEvent(name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, CoordinationEvent{
		ID:         m.id(),
		Name:       name,
		Payload:    datatypes.JSON(append([]byte(nil), payload...)),
		ReceivedAt: time.Now(),
	})
	return nil
}

func (m *Memory) RecordConnectionTransition(vehicle string, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, ConnectionTransition{
		ID:        m.id(),
		Vehicle:   vehicle,
		Connected: connected,
		At:        time.Now(),
	})
	return nil
}

func (m *Memory) RecordCompletedSurvey(visited, total int, abandoned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surveys = append(m.surveys, CompletedSurvey{
		ID:               m.id(),
		WaypointsVisited: visited,
		TotalWaypoints:   total,
		Abandoned:        abandoned,
		CompletedAt:      time.Now(),
	})
	return nil
}

// RecentEvents returns the newest events first.
func (m *Memory) RecentEvents(limit int) ([]CoordinationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.events)
	if limit > n {
		limit = n
	}
	out := make([]CoordinationEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// Transitions returns all recorded connectivity transitions.
func (m *Memory) Transitions() []ConnectionTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ConnectionTransition, len(m.transitions))
	copy(cp, m.transitions)
	return cp
}

// Surveys returns all recorded completed surveys.
func (m *Memory) Surveys() []CompletedSurvey {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]CompletedSurvey, len(m.surveys))
	copy(cp, m.surveys)
	return cp
}

func (m *Memory) id() uint {
	id := m.nextID
	m.nextID++
	return id
}
