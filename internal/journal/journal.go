// Package journal persists the console's session history: coordination
// events as they arrive, vehicle connectivity transitions, and completed
// surveys. The journal is an audit trail; nothing in the live reconciler
// reads from it. RecentEvents backs the operator UI's session history view.
package journal

import (
	"time"

	"gorm.io/datatypes"
)

// CoordinationEvent is one pushed coordination service event.
type CoordinationEvent struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	Name       string         `gorm:"size:64;index:idx_coordination_events_name" json:"name"`
	Payload    datatypes.JSON `json:"payload"`
	ReceivedAt time.Time      `gorm:"index:idx_coordination_events_received_at" json:"receivedAt"`
}

func (*CoordinationEvent) TableName() string {
	return "coordination_events"
}

// ConnectionTransition records a vehicle going online or offline.
type ConnectionTransition struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Vehicle   string    `gorm:"size:16;index:idx_connection_transitions_vehicle" json:"vehicle"`
	Connected bool      `json:"connected"`
	At        time.Time `json:"at"`
}

func (*ConnectionTransition) TableName() string {
	return "connection_transitions"
}

// CompletedSurvey records the outcome of one survey mission.
type CompletedSurvey struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	WaypointsVisited int       `json:"waypointsVisited"`
	TotalWaypoints   int       `json:"totalWaypoints"`
	Abandoned        bool      `json:"abandoned"`
	CompletedAt      time.Time `json:"completedAt"`
}

func (*CompletedSurvey) TableName() string {
	return "completed_surveys"
}

// Models lists every journal table for migration.
var Models = []any{
	&CoordinationEvent{},
	&ConnectionTransition{},
	&CompletedSurvey{},
}

// Backend is the interface all journal implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Recording
	RecordCoordinationEvent(name string, payload []byte) error
	RecordConnectionTransition(vehicle string, connected bool) error
	RecordCompletedSurvey(visited, total int, abandoned bool) error

	// Queries
	RecentEvents(limit int) ([]CoordinationEvent, error)
}
