// Package instruction derives the single operator instruction from the
// connection, coordination, safety and mission state. The operator reads
// one message at a time, so many concurrently-true conditions collapse into
// one text under a fixed precedence.
package instruction

import (
	"fmt"
	"math"

	"github.com/groundlink/console/internal/coord"
	"github.com/groundlink/console/internal/geo"
	"github.com/groundlink/console/internal/safety"
	"github.com/groundlink/console/internal/telemetry"
)

// Category is the display class of an instruction.
type Category string

const (
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
	CategorySuccess Category = "success"
	CategoryAction  Category = "action"
	CategorySurvey  Category = "survey"
)

// Instruction is the one message the operator sees.
type Instruction struct {
	Text     string
	Category Category
}

// Config holds the kinematic bands the guidance tier uses.
type Config struct {
	// StraightToleranceDeg is the relative angle within which the vehicle
	// is told to continue straight instead of turning.
	StraightToleranceDeg float64
	// StationarySpeed is the ground speed below which a vehicle counts as
	// stationary, in m/s.
	StationarySpeed float64
	// ComfortMinSpeed and ComfortMaxSpeed bound the band outside which a
	// speed hint is added, in m/s.
	ComfortMinSpeed float64
	ComfortMaxSpeed float64
}

// DefaultConfig matches the operator console defaults.
var DefaultConfig = Config{
	StraightToleranceDeg: 15,
	StationarySpeed:      0.5,
	ComfortMinSpeed:      1.0,
	ComfortMaxSpeed:      8.0,
}

// Inputs is everything the engine reads. It is a value type: Compute is a
// pure function and never mutates or retains its inputs.
type Inputs struct {
	CarConnected   bool
	DroneConnected bool
	Coordination   coord.State
	SurveyPending  bool
	Safety         safety.State
	Car            telemetry.Data
	Drone          telemetry.Data
}

// Compute derives the instruction. Tiers are checked highest-priority
// first and short-circuit, except the warning-distance tier which appends
// to waypoint guidance.
func Compute(in Inputs, cfg Config) Instruction {
	if !in.CarConnected {
		return Instruction{
			Text:     "Ground vehicle not connected. Connect it to receive guidance.",
			Category: CategoryWarning,
		}
	}

	// Danger distance is terminal below only the not-connected case: it
	// replaces whatever any lower tier would have said.
	if in.Safety.Known && in.Safety.Level == safety.Danger {
		return Instruction{
			Text: fmt.Sprintf(
				"CRITICAL: vehicles %s apart. Move toward the drone immediately.",
				geo.FormatDistance(in.Safety.Distance)),
			Category: CategoryError,
		}
	}

	carSpeed := groundSpeed(in.Car)
	droneSpeed := groundSpeed(in.Drone)
	carStationary := carSpeed < cfg.StationarySpeed
	droneMoving := droneSpeed >= cfg.StationarySpeed

	var out Instruction

	switch {
	case in.SurveyPending:
		out = Instruction{
			Text:     "Survey initiating. Hold position until the drone begins its pattern.",
			Category: CategorySurvey,
		}
	case in.Coordination.Surveying && carStationary && !in.Coordination.Following:
		out = Instruction{
			Text:     "Survey in progress. Hold position until the drone completes its pattern.",
			Category: CategorySurvey,
		}
	case in.Coordination.Following && droneMoving && carStationary:
		out = Instruction{
			Text:     "Drone is repositioning to follow the ground vehicle.",
			Category: CategoryInfo,
		}
	default:
		out = waypointGuidance(in, cfg, carSpeed, carStationary)
	}

	if in.Safety.Known && in.Safety.Level == safety.Warning {
		warn := fmt.Sprintf("Approaching maximum range (%s). Move toward the drone.",
			geo.FormatDistance(in.Safety.Distance))
		if out.Text == "" {
			return Instruction{Text: warn, Category: CategoryWarning}
		}
		return Instruction{Text: out.Text + " " + warn, Category: CategoryWarning}
	}

	if out.Text == "" {
		return Instruction{Text: "Standing by.", Category: CategoryInfo}
	}
	return out
}

// waypointGuidance produces the turn/drive tier or an empty instruction
// when the mission state is insufficient to steer by.
func waypointGuidance(in Inputs, cfg Config, carSpeed float64, carStationary bool) Instruction {
	car := in.Car
	if !car.HasFix() || car.Velocity.Heading == nil || car.Mission.CurrentWPSeq == nil {
		return Instruction{}
	}
	wp, ok := car.Mission.Waypoints[*car.Mission.CurrentWPSeq]
	if !ok {
		return Instruction{}
	}

	bearing := geo.Bearing(*car.Position.Latitude, *car.Position.Longitude, wp.Lat, wp.Lon)
	rel := geo.RelativeAngle(*car.Velocity.Heading, bearing)
	dist := geo.Haversine(*car.Position.Latitude, *car.Position.Longitude, wp.Lat, wp.Lon)
	if car.Mission.DistanceToWP != nil {
		dist = *car.Mission.DistanceToWP
	}

	var text string
	switch {
	case math.Abs(rel) <= cfg.StraightToleranceDeg:
		text = fmt.Sprintf("Continue straight for %s (%s).",
			geo.FormatDistance(dist), geo.CompassLabel(bearing))
	case rel > 0:
		text = fmt.Sprintf("Turn right %.0f° and drive %s (%s).",
			math.Abs(rel), geo.FormatDistance(dist), geo.CompassLabel(bearing))
	default:
		text = fmt.Sprintf("Turn left %.0f° and drive %s (%s).",
			math.Abs(rel), geo.FormatDistance(dist), geo.CompassLabel(bearing))
	}

	if !carStationary {
		if carSpeed < cfg.ComfortMinSpeed {
			text += " Increase speed."
		} else if carSpeed > cfg.ComfortMaxSpeed {
			text += " Reduce speed."
		}
	}

	return Instruction{Text: text, Category: CategoryAction}
}

func groundSpeed(d telemetry.Data) float64 {
	if d.Velocity.GroundSpeed == nil {
		return 0
	}
	return *d.Velocity.GroundSpeed
}
