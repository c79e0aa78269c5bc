package telemetry

import "sync"

// Store holds the snapshot of every coordinated vehicle. Snapshots are
// created once per kind and live for the process lifetime; latency on the
// hot merge path matters, so lookups avoid allocation.
type Store struct {
	mu        sync.RWMutex
	snapshots map[Kind]*Snapshot
}

// NewStore creates a store with snapshots for the drone and the ground
// vehicle.
func NewStore() *Store {
	return &Store{
		snapshots: map[Kind]*Snapshot{
			KindDrone: NewSnapshot(KindDrone),
			KindCar:   NewSnapshot(KindCar),
		},
	}
}

// Get returns the snapshot for the given vehicle kind, creating it for
// kinds outside the default pair.
func (s *Store) Get(kind Kind) *Snapshot {
	s.mu.RLock()
	snap, ok := s.snapshots[kind]
	s.mu.RUnlock()
	if ok {
		return snap
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok = s.snapshots[kind]; ok {
		return snap
	}
	snap = NewSnapshot(kind)
	s.snapshots[kind] = snap
	return snap
}

// Kinds returns the vehicle kinds currently tracked.
func (s *Store) Kinds() []Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]Kind, 0, len(s.snapshots))
	for k := range s.snapshots {
		kinds = append(kinds, k)
	}
	return kinds
}
