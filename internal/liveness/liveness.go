// Package liveness derives per-vehicle connectivity from heartbeat recency.
// Connectivity is recomputed on a fixed tick rather than on telemetry
// arrival, so heartbeat silence correctly transitions a vehicle to
// disconnected.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/groundlink/console/internal/telemetry"
)

// ChangeFunc is called on every connectivity transition.
type ChangeFunc func(kind telemetry.Kind, connected bool)

// Monitor ticks over the telemetry store and tracks which vehicles have a
// recent heartbeat.
type Monitor struct {
	store    *telemetry.Store
	timeout  time.Duration
	interval time.Duration
	onChange ChangeFunc
	log      *slog.Logger

	now func() time.Time

	mu        sync.Mutex
	connected map[telemetry.Kind]bool
}

// NewMonitor creates a monitor. timeout is the maximum heartbeat age before
// a vehicle counts as disconnected; interval is the recomputation tick.
func NewMonitor(store *telemetry.Store, timeout, interval time.Duration, onChange ChangeFunc, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		store:     store,
		timeout:   timeout,
		interval:  interval,
		onChange:  onChange,
		log:       log,
		now:       time.Now,
		connected: make(map[telemetry.Kind]bool),
	}
}

// Connected reports the last computed connectivity for a vehicle.
func (m *Monitor) Connected(kind telemetry.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[kind]
}

// Check recomputes connectivity for every vehicle once, firing the change
// callback for each transition.
func (m *Monitor) Check() {
	now := m.now()
	for _, kind := range m.store.Kinds() {
		data := m.store.Get(kind).View()
		connected := false
		if ts := data.Heartbeat.Timestamp; ts != nil {
			age := now.Sub(time.UnixMilli(int64(*ts * 1000)))
			connected = age < m.timeout
		}

		m.mu.Lock()
		prev := m.connected[kind]
		m.connected[kind] = connected
		m.mu.Unlock()

		if prev != connected {
			m.log.Info("vehicle connectivity changed", "vehicle", string(kind), "connected", connected)
			if m.onChange != nil {
				m.onChange(kind, connected)
			}
		}
	}
}

// Run ticks until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}
