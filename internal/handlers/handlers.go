// Package handlers binds the inbound frame types to the console state:
// telemetry frames merge into vehicle snapshots, coordination events feed
// the reconciler and the session journal, pings are acknowledged and
// dropped.
package handlers

import (
	"context"
	"log/slog"

	"github.com/groundlink/console/internal/coord"
	"github.com/groundlink/console/internal/dispatcher"
	"github.com/groundlink/console/internal/influx"
	"github.com/groundlink/console/internal/intake"
	"github.com/groundlink/console/internal/journal"
	"github.com/groundlink/console/internal/telemetry"
	"github.com/groundlink/console/internal/waypoint"
)

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Store      *telemetry.Store
	Tracker    *waypoint.Tracker
	Reconciler *coord.Reconciler
	Journal    journal.Backend // optional
	Influx     *influx.Manager // optional
	Logger     *slog.Logger
}

// Manager owns the frame handlers and their registration.
type Manager struct {
	deps Dependencies
}

// NewManager creates a handler manager.
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps}
}

// RegisterHandlers registers all frame handlers with the dispatcher.
// Telemetry and coordination events share the vehicle's ordered queue, so an
// event never runs ahead of telemetry delivered before it on the same
// channel. Pings carry no state and run inline.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(intake.MsgTelemetry, m.handleTelemetry, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(intake.MsgPing, m.handlePing)
	d.Register(intake.MsgCoordinationEvent, m.handleCoordinationEvent, dispatcher.Buffered(1000), dispatcher.Logged())
}

func (m *Manager) handleTelemetry(msg dispatcher.Message) (any, error) {
	frame, err := telemetry.DecodeFrame(msg.Payload)
	if err != nil {
		return nil, err
	}

	kind := telemetry.Kind(msg.Vehicle)
	snap := m.deps.Store.Get(kind)
	snap.Merge(frame)

	if kind == telemetry.KindCar && frame.Mission != nil && m.deps.Tracker != nil {
		m.deps.Tracker.Apply(snap.View().Mission)
	}

	if m.deps.Influx != nil {
		if p, ok := influx.TelemetryPoint(kind, snap.View(), msg.Timestamp); ok {
			if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketTelemetry, p); err != nil {
				m.deps.Logger.Warn("failed to sample telemetry", "vehicle", msg.Vehicle, "error", err)
			}
		}
	}

	return nil, nil
}

func (m *Manager) handlePing(dispatcher.Message) (any, error) {
	return nil, nil
}

func (m *Manager) handleCoordinationEvent(msg dispatcher.Message) (any, error) {
	e, err := coord.DecodeEvent(msg.Payload)
	if err != nil {
		return nil, err
	}

	m.deps.Reconciler.HandleEvent(e, msg.Payload)

	switch e.Name {
	case coord.EventSurveyCompleted:
		m.recordSurvey(false)
	case coord.EventSurveyAbandoned:
		m.recordSurvey(true)
	}

	return nil, nil
}

func (m *Manager) recordSurvey(abandoned bool) {
	if m.deps.Journal == nil || m.deps.Tracker == nil {
		return
	}
	visited := m.deps.Tracker.Count()
	total := m.deps.Tracker.Total()
	if err := m.deps.Journal.RecordCompletedSurvey(visited, total, abandoned); err != nil {
		m.deps.Logger.Warn("failed to journal completed survey", "error", err)
	}
}
