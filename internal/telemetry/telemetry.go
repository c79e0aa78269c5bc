// Package telemetry holds the per-vehicle telemetry state the console
// mirrors from the backend. Each vehicle owns exactly one Snapshot which is
// only ever mutated through Merge; every derived value (distance, safety,
// instructions) is computed from value copies taken with View.
package telemetry

import "sync"

// Kind identifies one of the two coordinated vehicles.
type Kind string

const (
	KindDrone Kind = "drone"
	KindCar   Kind = "car"
)

// Position is the geographic fix of a vehicle. Fields are pointers because
// the backend reports them as nullable until the autopilot has a fix.
type Position struct {
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	AltitudeMSL      *float64 `json:"altitude_msl"`
	RelativeAltitude *float64 `json:"relative_altitude"`
}

// Velocity is the kinematic state of a vehicle.
type Velocity struct {
	VX          *float64 `json:"vx"`
	VY          *float64 `json:"vy"`
	VZ          *float64 `json:"vz"`
	GroundSpeed *float64 `json:"ground_speed"`
	Heading     *float64 `json:"heading"`
}

// Battery is the power state of a vehicle.
type Battery struct {
	Voltage             *float64 `json:"voltage"`
	RemainingPercentage *float64 `json:"remaining_percentage"`
}

// Waypoint is one mission waypoint as pushed by the backend.
type Waypoint struct {
	Seq int     `json:"seq"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Mission is the mission progress block of a vehicle.
type Mission struct {
	CurrentWPSeq       *int             `json:"current_wp_seq"`
	NextWPSeq          *int             `json:"next_wp_seq"`
	DistanceToWP       *float64         `json:"distance_to_wp"`
	ProgressPercentage *float64         `json:"progress_percentage"`
	TotalWaypoints     *int             `json:"total_waypoints"`
	Waypoints          map[int]Waypoint `json:"mission_waypoints"`
	Visited            []int            `json:"visited_waypoints"`
}

// Heartbeat is the autopilot liveness block. Timestamp is unix seconds.
type Heartbeat struct {
	Timestamp     *float64 `json:"timestamp"`
	FlightMode    *int     `json:"flight_mode"`
	SystemStatus  *int     `json:"system_status"`
	Armed         *bool    `json:"armed"`
	GuidedEnabled *bool    `json:"guided_enabled"`
	CustomMode    *int     `json:"custom_mode"`
}

// Data is the full telemetry value for one vehicle. It is the copyable view
// type; Snapshot wraps it with ownership and locking.
type Data struct {
	VehicleID string
	Position  Position
	Velocity  Velocity
	Battery   Battery
	Mission   Mission
	Heartbeat Heartbeat
}

// HasFix reports whether the vehicle has a usable latitude/longitude.
func (d Data) HasFix() bool {
	return d.Position.Latitude != nil && d.Position.Longitude != nil
}

// Snapshot owns the telemetry state of one vehicle for the lifetime of its
// session. Resetting keeps the struct alive so the UI can distinguish
// "no data" from "never connected".
type Snapshot struct {
	mu   sync.RWMutex
	kind Kind
	data Data
}

// NewSnapshot creates an empty snapshot for the given vehicle kind.
func NewSnapshot(kind Kind) *Snapshot {
	return &Snapshot{kind: kind}
}

// Kind returns the vehicle kind this snapshot belongs to.
func (s *Snapshot) Kind() Kind { return s.kind }

// Merge applies a partial telemetry frame field-by-field. A section present
// in the frame merges into the stored section; fields the frame reports as
// null keep their previous value, which keeps a known-good heartbeat
// timestamp from being erased by a frame without one.
func (s *Snapshot) Merge(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.VehicleID != nil {
		s.data.VehicleID = *f.VehicleID
	}
	if f.Position != nil {
		mergePosition(&s.data.Position, *f.Position)
	}
	if f.Velocity != nil {
		mergeVelocity(&s.data.Velocity, *f.Velocity)
	}
	if f.Battery != nil {
		mergeBattery(&s.data.Battery, *f.Battery)
	}
	if f.Mission != nil {
		mergeMission(&s.data.Mission, *f.Mission)
	}
	if f.Heartbeat != nil {
		mergeHeartbeat(&s.data.Heartbeat, *f.Heartbeat)
	}
}

// View returns a deep copy of the current telemetry value.
func (s *Snapshot) View() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyData(s.data)
}

// Reset clears the snapshot back to session defaults.
func (s *Snapshot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = Data{}
}

// ClearMission drops the mission waypoint data after a completed survey so
// dependent views reset to an empty mission.
func (s *Snapshot) ClearMission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Mission = Mission{}
}

func mergePosition(dst *Position, src Position) {
	if src.Latitude != nil {
		dst.Latitude = src.Latitude
	}
	if src.Longitude != nil {
		dst.Longitude = src.Longitude
	}
	if src.AltitudeMSL != nil {
		dst.AltitudeMSL = src.AltitudeMSL
	}
	if src.RelativeAltitude != nil {
		dst.RelativeAltitude = src.RelativeAltitude
	}
}

func mergeVelocity(dst *Velocity, src Velocity) {
	if src.VX != nil {
		dst.VX = src.VX
	}
	if src.VY != nil {
		dst.VY = src.VY
	}
	if src.VZ != nil {
		dst.VZ = src.VZ
	}
	if src.GroundSpeed != nil {
		dst.GroundSpeed = src.GroundSpeed
	}
	if src.Heading != nil {
		dst.Heading = src.Heading
	}
}

func mergeBattery(dst *Battery, src Battery) {
	if src.Voltage != nil {
		dst.Voltage = src.Voltage
	}
	if src.RemainingPercentage != nil {
		dst.RemainingPercentage = src.RemainingPercentage
	}
}

func mergeMission(dst *Mission, src Mission) {
	if src.CurrentWPSeq != nil {
		dst.CurrentWPSeq = src.CurrentWPSeq
	}
	if src.NextWPSeq != nil {
		dst.NextWPSeq = src.NextWPSeq
	}
	if src.DistanceToWP != nil {
		dst.DistanceToWP = src.DistanceToWP
	}
	if src.ProgressPercentage != nil {
		dst.ProgressPercentage = src.ProgressPercentage
	}
	if src.TotalWaypoints != nil {
		dst.TotalWaypoints = src.TotalWaypoints
	}
	if src.Waypoints != nil {
		dst.Waypoints = src.Waypoints
	}
	if src.Visited != nil {
		dst.Visited = src.Visited
	}
}

func mergeHeartbeat(dst *Heartbeat, src Heartbeat) {
	if src.Timestamp != nil {
		dst.Timestamp = src.Timestamp
	}
	if src.FlightMode != nil {
		dst.FlightMode = src.FlightMode
	}
	if src.SystemStatus != nil {
		dst.SystemStatus = src.SystemStatus
	}
	if src.Armed != nil {
		dst.Armed = src.Armed
	}
	if src.GuidedEnabled != nil {
		dst.GuidedEnabled = src.GuidedEnabled
	}
	if src.CustomMode != nil {
		dst.CustomMode = src.CustomMode
	}
}

func copyData(d Data) Data {
	out := d
	if d.Mission.Waypoints != nil {
		wps := make(map[int]Waypoint, len(d.Mission.Waypoints))
		for k, v := range d.Mission.Waypoints {
			wps[k] = v
		}
		out.Mission.Waypoints = wps
	}
	if d.Mission.Visited != nil {
		out.Mission.Visited = append([]int(nil), d.Mission.Visited...)
	}
	return out
}
