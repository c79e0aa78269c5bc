package coord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/groundlink/console/internal/notify"
)

// Client is the backend command surface the reconciler drives.
type Client interface {
	StartCoordination(ctx context.Context) error
	StopCoordination(ctx context.Context) error
	CoordinationStatus(ctx context.Context) (State, error)
	InitiateProximitySurvey(ctx context.Context) error
	PauseSurvey(ctx context.Context) error
	ResumeSurvey(ctx context.Context) error
}

// Recorder persists coordination events for the session journal.
type Recorder interface {
	RecordCoordinationEvent(name string, payload []byte) error
}

// Config holds the reconciler timings.
type Config struct {
	// PollInterval is how often the status poll runs while a pending
	// overlay is outstanding.
	PollInterval time.Duration
	// ClearDelay is how long after survey_completed the mission waypoint
	// data is kept so dependent views can render the completed state.
	ClearDelay time.Duration
	// PendingExpiry bounds how long an unconfirmed overlay may live. An
	// expired overlay clears, and the confirmation poll stops with it.
	// Zero means 10 seconds.
	PendingExpiry time.Duration
}

// Dependencies holds the reconciler's collaborators.
type Dependencies struct {
	Client   Client
	Logger   *slog.Logger
	Notifier notify.Notifier
	Recorder Recorder // optional

	// OnMissionClear runs when the delayed mission-data clear fires.
	OnMissionClear func()
}

// Reconciler merges pushed coordination events and pulled status snapshots
// into one authoritative mirror plus a short-lived optimistic overlay.
type Reconciler struct {
	cfg  Config
	deps Dependencies

	mu      sync.Mutex
	state   State
	pending Pending
	polling bool

	clearTimer  *time.Timer
	expiryTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a reconciler. The mirror starts inactive.
func New(cfg Config, deps Dependencies) *Reconciler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	if cfg.PendingExpiry <= 0 {
		cfg.PendingExpiry = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{cfg: cfg, deps: deps, ctx: ctx, cancel: cancel}
}

// State returns a copy of the mirrored coordination state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Pending returns the outstanding optimistic overlay, if any.
func (r *Reconciler) Pending() Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// SurveyPending reports whether a survey was requested but not yet
// confirmed active, for the instruction engine's hold-position tier.
func (r *Reconciler) SurveyPending() bool {
	return r.Pending() == PendingSurveyStart
}

// HandleEvent applies one pushed coordination event to the mirror, clears
// the overlay when the event confirms or contradicts it, and surfaces the
// user-visible consequences.
func (r *Reconciler) HandleEvent(e Event, payload []byte) {
	r.mu.Lock()
	r.state = Apply(r.state, e)
	if r.pending != PendingNone &&
		(r.pending.confirmedBy(r.state) || r.pending.contradictedBy(e)) {
		r.clearPendingLocked()
	}
	r.mu.Unlock()

	r.deps.Logger.Debug("coordination event", "event", string(e.Name), "reason", e.Reason)

	if r.deps.Recorder != nil {
		if err := r.deps.Recorder.RecordCoordinationEvent(string(e.Name), payload); err != nil {
			r.deps.Logger.Warn("failed to journal coordination event", "event", string(e.Name), "error", err)
		}
	}

	r.notifyForEvent(e)

	if e.Name == EventSurveyCompleted {
		r.scheduleMissionClear()
	}
}

// ApplyStatus overwrites the mirror with a full authoritative snapshot from
// the status poll and clears an overlay the snapshot confirms or moots.
func (r *Reconciler) ApplyStatus(s State) {
	r.mu.Lock()
	r.state = s
	if r.pending != PendingNone && (r.pending.confirmedBy(s) || r.pending.mootedBy(s)) {
		r.clearPendingLocked()
	}
	r.mu.Unlock()
}

// Poll fetches one status snapshot and applies it.
func (r *Reconciler) Poll(ctx context.Context) error {
	s, err := r.deps.Client.CoordinationStatus(ctx)
	if err != nil {
		return fmt.Errorf("coordination status poll: %w", err)
	}
	r.ApplyStatus(s)
	return nil
}

// StartCoordination requests coordination activation with an optimistic
// overlay pending server confirmation.
func (r *Reconciler) StartCoordination(ctx context.Context) error {
	return r.command(ctx, PendingCoordinationStart, "start coordination", r.deps.Client.StartCoordination)
}

// StopCoordination requests coordination shutdown.
func (r *Reconciler) StopCoordination(ctx context.Context) error {
	return r.command(ctx, PendingCoordinationStop, "stop coordination", r.deps.Client.StopCoordination)
}

// InitiateSurvey requests a proximity survey at the current position.
func (r *Reconciler) InitiateSurvey(ctx context.Context) error {
	return r.command(ctx, PendingSurveyStart, "initiate survey", r.deps.Client.InitiateProximitySurvey)
}

// PauseSurvey requests a pause of the running survey.
func (r *Reconciler) PauseSurvey(ctx context.Context) error {
	return r.command(ctx, PendingSurveyPause, "pause survey", r.deps.Client.PauseSurvey)
}

// ResumeSurvey requests a resume of a paused survey.
func (r *Reconciler) ResumeSurvey(ctx context.Context) error {
	return r.command(ctx, PendingSurveyResume, "resume survey", r.deps.Client.ResumeSurvey)
}

// command sets the overlay with its expiry timer, starts polling for
// confirmation, and issues the request. A failed request clears the overlay
// immediately.
func (r *Reconciler) command(ctx context.Context, p Pending, what string, do func(context.Context) error) error {
	r.mu.Lock()
	r.pending = p
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
	}
	r.expiryTimer = time.AfterFunc(r.cfg.PendingExpiry, func() { r.expirePending(p) })
	r.mu.Unlock()

	r.ensurePolling()

	if err := do(ctx); err != nil {
		r.mu.Lock()
		if r.pending == p {
			r.clearPendingLocked()
		}
		r.mu.Unlock()
		r.deps.Notifier.Notify(notify.Error, fmt.Sprintf("Failed to %s: %v", what, err))
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// clearPendingLocked clears the overlay and disarms its expiry timer. The
// caller holds mu.
func (r *Reconciler) clearPendingLocked() {
	r.pending = PendingNone
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
		r.expiryTimer = nil
	}
}

// expirePending clears an overlay that was never confirmed nor contradicted,
// so a dead backend cannot pin the confirmation poll forever.
func (r *Reconciler) expirePending(p Pending) {
	r.mu.Lock()
	if r.pending != p {
		r.mu.Unlock()
		return
	}
	r.pending = PendingNone
	r.expiryTimer = nil
	r.mu.Unlock()
	r.deps.Logger.Warn("command confirmation timed out", "command", p.String())
}

// ensurePolling starts the confirmation poll loop if it is not running.
// The loop stops itself once no overlay is outstanding, bounding network
// chatter to the window between command and confirmation.
func (r *Reconciler) ensurePolling() {
	r.mu.Lock()
	if r.polling || r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.polling = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				r.setPollingDone()
				return
			case <-ticker.C:
				if r.Pending() == PendingNone {
					r.setPollingDone()
					return
				}
				if err := r.Poll(r.ctx); err != nil {
					r.deps.Logger.Warn("status poll failed", "error", err)
				}
			}
		}
	}()
}

func (r *Reconciler) setPollingDone() {
	r.mu.Lock()
	r.polling = false
	r.mu.Unlock()
}

// scheduleMissionClear arms the delayed mission-data clear. A later
// survey_completed restarts the delay.
func (r *Reconciler) scheduleMissionClear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	if r.clearTimer != nil {
		r.clearTimer.Stop()
	}
	r.clearTimer = time.AfterFunc(r.cfg.ClearDelay, func() {
		if r.deps.OnMissionClear != nil {
			r.deps.OnMissionClear()
		}
	})
}

func (r *Reconciler) notifyForEvent(e Event) {
	n := r.deps.Notifier
	switch e.Name {
	case EventCoordinationActive:
		n.Notify(notify.Success, "Coordination service active")
	case EventCoordinationStopped:
		n.Notify(notify.Info, "Coordination service stopped")
	case EventCoordinationFault:
		text := "Coordination fault reported"
		if e.Reason != "" {
			text = fmt.Sprintf("Coordination fault: %s", e.Reason)
		}
		n.Notify(notify.Warning, text)
	case EventFollowingTriggered:
		n.Notify(notify.Info, "Drone is following the ground vehicle")
	case EventFollowingStopped, EventFollowingPaused:
		n.Notify(notify.Info, "Follow mode ended")
	case EventSurveyStarted:
		n.Notify(notify.Success, "Survey mission started")
	case EventSurveyButtonChanged:
		if e.Enabled != nil && *e.Enabled {
			text := "Survey available at this position"
			if e.Distance != nil {
				text = fmt.Sprintf("Survey available: vehicles %.0fm apart", *e.Distance)
			}
			n.Notify(notify.Info, text)
		}
	case EventSurveyAbandoned:
		text := "Survey abandoned"
		if e.Reason != "" {
			text = fmt.Sprintf("Survey abandoned: %s", e.Reason)
		}
		n.Notify(notify.Warning, text)
	case EventSurveyCompleted:
		n.Notify(notify.Success, "Survey mission completed")
	}
}

// Close stops the poll loop and cancels the mission-clear and overlay-expiry
// timers. A timer firing after teardown would mutate state the caller no
// longer owns.
func (r *Reconciler) Close() {
	r.cancel()
	r.mu.Lock()
	if r.clearTimer != nil {
		r.clearTimer.Stop()
		r.clearTimer = nil
	}
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
		r.expiryTimer = nil
	}
	r.mu.Unlock()
	r.wg.Wait()
}
