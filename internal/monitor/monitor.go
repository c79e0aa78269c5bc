// Package monitor runs the periodic console evaluation: separation
// distance and safety level from the two vehicle snapshots, survey
// progress, and the single operator instruction. The presentation layer
// reads the latest Status; transitions are pushed through notify.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groundlink/console/internal/coord"
	"github.com/groundlink/console/internal/geo"
	"github.com/groundlink/console/internal/influx"
	"github.com/groundlink/console/internal/instruction"
	"github.com/groundlink/console/internal/liveness"
	"github.com/groundlink/console/internal/notify"
	"github.com/groundlink/console/internal/safety"
	"github.com/groundlink/console/internal/telemetry"
	"github.com/groundlink/console/internal/waypoint"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Store      *telemetry.Store
	Liveness   *liveness.Monitor
	Reconciler *coord.Reconciler
	Tracker    *waypoint.Tracker
	Notifier   notify.Notifier
	Influx     *influx.Manager // optional
	Logger     *slog.Logger
}

// Config holds the evaluation interval and the derived-signal tuning.
type Config struct {
	Interval   time.Duration
	Thresholds safety.Thresholds
	Guidance   instruction.Config
}

// Status is one evaluated console state.
type Status struct {
	Safety         safety.State
	Instruction    instruction.Instruction
	Coordination   coord.State
	DroneConnected bool
	CarConnected   bool
	SurveyProgress int
}

// Service manages the evaluation loop.
type Service struct {
	cfg  Config
	deps Dependencies

	mu     sync.RWMutex
	status Status
	primed bool

	now func() time.Time
}

// NewService creates a monitor service.
func NewService(cfg Config, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	return &Service{cfg: cfg, deps: deps, now: time.Now}
}

// Status returns the latest evaluated state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Evaluate runs one evaluation pass and returns the new status.
func (s *Service) Evaluate() Status {
	drone := s.deps.Store.Get(telemetry.KindDrone).View()
	car := s.deps.Store.Get(telemetry.KindCar).View()
	coordState := s.deps.Reconciler.State()

	next := Status{
		Coordination:   coordState,
		DroneConnected: s.deps.Liveness.Connected(telemetry.KindDrone),
		CarConnected:   s.deps.Liveness.Connected(telemetry.KindCar),
		Safety:         s.separation(drone, car),
	}
	if s.deps.Tracker != nil {
		next.SurveyProgress = s.deps.Tracker.Progress()
	}

	next.Instruction = instruction.Compute(instruction.Inputs{
		CarConnected:   next.CarConnected,
		DroneConnected: next.DroneConnected,
		Coordination:   coordState,
		SurveyPending:  s.deps.Reconciler.SurveyPending(),
		Safety:         next.Safety,
		Car:            car,
		Drone:          drone,
	}, s.cfg.Guidance)

	s.mu.Lock()
	prev := s.status
	primed := s.primed
	s.status = next
	s.primed = true
	s.mu.Unlock()

	if primed {
		s.announceTransitions(prev, next)
	}
	s.sample(next)

	return next
}

// Run evaluates at the configured interval until ctx is canceled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evaluate()
		}
	}
}

// separation computes the safety state from the two positions. Unknown
// while either vehicle lacks a fix.
func (s *Service) separation(drone, car telemetry.Data) safety.State {
	if !drone.HasFix() || !car.HasFix() {
		return safety.State{}
	}
	d := geo.Haversine(
		*drone.Position.Latitude, *drone.Position.Longitude,
		*car.Position.Latitude, *car.Position.Longitude,
	)
	return safety.State{
		Known:    true,
		Distance: d,
		Level:    safety.Classify(d, s.cfg.Thresholds),
	}
}

func (s *Service) announceTransitions(prev, next Status) {
	if !next.Safety.Known || next.Safety.Level == prev.Safety.Level {
		return
	}
	switch next.Safety.Level {
	case safety.Danger:
		s.deps.Notifier.Notify(notify.Error, fmt.Sprintf(
			"Separation critical: vehicles %s apart", geo.FormatDistance(next.Safety.Distance)))
	case safety.Warning:
		s.deps.Notifier.Notify(notify.Warning, fmt.Sprintf(
			"Separation warning: vehicles %s apart", geo.FormatDistance(next.Safety.Distance)))
	case safety.Safe:
		if prev.Safety.Known {
			s.deps.Notifier.Notify(notify.Info, "Separation back in safe range")
		}
	}
}

// sample writes the evaluated signals to InfluxDB when a manager is wired.
func (s *Service) sample(next Status) {
	if s.deps.Influx == nil {
		return
	}
	now := s.now()
	ctx := context.Background()

	if next.Safety.Known {
		p := influx.SeparationPoint(next.Safety.Distance, next.Safety.Level.String(), now)
		if err := s.deps.Influx.WritePoint(ctx, influx.BucketCoordination, p); err != nil {
			s.deps.Logger.Warn("failed to sample separation", "error", err)
		}
	}

	if next.Coordination.Surveying && s.deps.Tracker != nil {
		p := influx.SurveyPoint(s.deps.Tracker.Count(), s.deps.Tracker.Total(), next.SurveyProgress, now)
		if err := s.deps.Influx.WritePoint(ctx, influx.BucketCoordination, p); err != nil {
			s.deps.Logger.Warn("failed to sample survey progress", "error", err)
		}
	}
}
