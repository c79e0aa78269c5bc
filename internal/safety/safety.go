// Package safety classifies the separation distance between the aerial and
// ground units into ordered safety levels.
package safety

// Level is an ordered safety classification of the vehicle separation.
type Level int

const (
	Safe Level = iota
	Warning
	Danger
)

// String returns the display name of the level.
func (l Level) String() string {
	switch l {
	case Safe:
		return "SAFE"
	case Warning:
		return "WARNING"
	case Danger:
		return "DANGER"
	default:
		return "UNKNOWN"
	}
}

// Thresholds holds the warning and danger separation distances in meters.
type Thresholds struct {
	WarningMeters float64
	DangerMeters  float64
}

// DefaultThresholds matches the coordination service policy: warning above
// 490 m, danger above 500 m.
var DefaultThresholds = Thresholds{WarningMeters: 490, DangerMeters: 500}

// Classify maps a separation distance to a Level. Both boundaries use a
// strict greater-than comparison, so a distance of exactly WarningMeters is
// Safe and exactly DangerMeters is Warning.
func Classify(distance float64, t Thresholds) Level {
	switch {
	case distance > t.DangerMeters:
		return Danger
	case distance > t.WarningMeters:
		return Warning
	default:
		return Safe
	}
}

// State pairs a computed separation distance with its classification.
// Known reports whether both vehicles had usable positions.
type State struct {
	Known    bool
	Distance float64
	Level    Level
}
