package telemetry

import (
	"encoding/json"
	"fmt"
)

// FrameKind classifies an inbound websocket frame.
type FrameKind int

const (
	// FrameTelemetry is a partial telemetry update to merge into a snapshot.
	FrameTelemetry FrameKind = iota
	// FramePing is a keepalive; it carries no state and is discarded.
	FramePing
	// FrameCoordinationEvent is a pushed coordination service event. It is
	// routed to the reconciler and never merged into telemetry.
	FrameCoordinationEvent
)

// Frame is one decoded websocket message. Section pointers are nil when the
// frame omitted that section.
type Frame struct {
	Type  string `json:"type,omitempty"`
	Event string `json:"event,omitempty"`

	Position  *Position  `json:"position,omitempty"`
	Velocity  *Velocity  `json:"velocity,omitempty"`
	Battery   *Battery   `json:"battery,omitempty"`
	Mission   *Mission   `json:"mission,omitempty"`
	Heartbeat *Heartbeat `json:"heartbeat,omitempty"`
	VehicleID *string    `json:"vehicle_id,omitempty"`

	// Raw keeps the full message for coordination events, whose extra
	// fields (reason, distance, enabled, ...) vary per event name.
	Raw json.RawMessage `json:"-"`
}

// Kind reports how the frame should be routed.
func (f Frame) Kind() FrameKind {
	switch f.Type {
	case "ping":
		return FramePing
	case "coordination_event":
		return FrameCoordinationEvent
	default:
		return FrameTelemetry
	}
}

// DecodeFrame parses a raw websocket message. Malformed JSON is a protocol
// fault: the caller logs it and drops the frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode telemetry frame: %w", err)
	}
	f.Raw = append(json.RawMessage(nil), data...)
	return f, nil
}
