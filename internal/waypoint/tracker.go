// Package waypoint tracks which mission waypoints the ground vehicle has
// visited, merging the backend's authoritative visited list with a local
// proximity heuristic that covers the gap before the server confirms.
package waypoint

import (
	"math"
	"sort"
	"sync"

	"github.com/groundlink/console/internal/telemetry"
)

// Tracker maintains a monotonically-growing set of visited waypoint
// sequence numbers for the lifetime of one mission.
type Tracker struct {
	mu            sync.Mutex
	arrivalMeters float64
	total         int
	visited       map[int]struct{}
}

// NewTracker creates a tracker using the given arrival threshold in meters
// for the local proximity heuristic.
func NewTracker(arrivalMeters float64) *Tracker {
	return &Tracker{
		arrivalMeters: arrivalMeters,
		visited:       make(map[int]struct{}),
	}
}

// Apply merges one mission update. Server-pushed visited lists replace the
// local set; the arrival heuristic only ever adds. Applying the same update
// twice yields the same state.
func (t *Tracker) Apply(m telemetry.Mission) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m.TotalWaypoints != nil && *m.TotalWaypoints != t.total {
		t.total = *m.TotalWaypoints
	}

	if len(m.Visited) > 0 {
		t.visited = make(map[int]struct{}, len(m.Visited))
		for _, seq := range m.Visited {
			t.visited[seq] = struct{}{}
		}
	}

	if m.CurrentWPSeq == nil || m.DistanceToWP == nil {
		return
	}
	if *m.DistanceToWP > t.arrivalMeters {
		return
	}
	t.visited[*m.CurrentWPSeq] = struct{}{}
}

// Visited returns the visited sequence numbers in ascending order.
func (t *Tracker) Visited() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.visited))
	for seq := range t.visited {
		out = append(out, seq)
	}
	sort.Ints(out)
	return out
}

// Count returns the number of visited waypoints.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visited)
}

// Total returns the mission waypoint count.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Progress returns the mission completion percentage, rounded and clamped
// to 100. A mission with no waypoints is 0%.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(len(t.visited)) / float64(t.total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Clear resets the tracker for a new mission.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.visited = make(map[int]struct{})
}
