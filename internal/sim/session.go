package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/MohammedFaisal0/masari-safe/internal/i18n"
	"github.com/MohammedFaisal0/masari-safe/internal/route"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

// Options configure sessions. Zero values fall back to a real clock, the
// default route, Arabic messages and the local time zone.
type Options struct {
	Clock     clockwork.Clock
	Route     *route.Route
	Localizer *i18n.Localizer
	Location  *time.Location
	Logger    *slog.Logger
	Sinks     []Sink
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Route == nil {
		o.Route = route.Default()
	}
	if o.Localizer == nil {
		o.Localizer = i18n.New("ar")
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

var statusLabels = map[trip.Status]string{
	trip.StatusHome:     i18n.StatusHomeLabel,
	trip.StatusInBus:    i18n.StatusInBusLabel,
	trip.StatusAtSchool: i18n.StatusAtSchoolLabel,
}

var stepLabels = map[trip.Status]string{
	trip.StatusHome:     i18n.StepHomeLabel,
	trip.StatusInBus:    i18n.StepInBusLabel,
	trip.StatusAtSchool: i18n.StepAtSchoolLabel,
}

// Session holds the simulation state of one client session and drives its
// timeline. All methods are safe for concurrent use.
type Session struct {
	id     string
	opts   Options
	script []Effect

	mu            sync.Mutex
	running       bool
	status        trip.Status
	progress      float64
	notifications []trip.Notification // newest first
	viewMode      trip.ViewMode
	students      []trip.Student
	startedAt     time.Time
	closed        bool

	gen    uint64 // bumped on every start and cancel; effects from older runs are dropped
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(id string, opts Options) *Session {
	return &Session{
		id:       id,
		opts:     opts.withDefaults(),
		script:   Script(),
		status:   trip.StatusHome,
		viewMode: trip.ViewParent,
		students: trip.DefaultRoster(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Route() *route.Route { return s.opts.Route }

// Start begins a new run. It clears the feed and progress before any effect
// is scheduled and fails with ErrAlreadyRunning while a run is active.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.running {
		return ErrAlreadyRunning
	}
	s.cancelLocked()
	s.notifications = nil
	s.progress = 0
	s.status = trip.StatusHome
	s.running = true
	s.startedAt = s.opts.Clock.Now()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen
	s.wg.Add(1)
	go s.run(ctx, gen, s.startedAt)

	s.opts.Logger.Info("simulation started", slog.String("session_id", s.id))
	s.emitLocked(Event{Kind: EventStarted})
	return nil
}

// Stop halts the run and cancels every pending effect. Status, progress and
// the feed keep their current values.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	wasRunning := s.running
	s.cancelLocked()
	s.running = false
	if wasRunning {
		s.opts.Logger.Info("simulation stopped", slog.String("session_id", s.id), slog.Float64("progress", s.progress))
	}
	s.emitLocked(Event{Kind: EventStopped, Interrupted: wasRunning})
	return nil
}

// Reset cancels pending effects and returns the trip to its initial state.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	wasRunning := s.running
	s.cancelLocked()
	s.running = false
	s.status = trip.StatusHome
	s.progress = 0
	s.notifications = nil
	s.startedAt = time.Time{}
	s.emitLocked(Event{Kind: EventReset, Interrupted: wasRunning})
	return nil
}

// Close cancels the run, waits for the driver goroutine and rejects further commands.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	wasRunning := s.running
	s.cancelLocked()
	s.running = false
	s.emitLocked(Event{Kind: EventClosed, Interrupted: wasRunning})
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// WithSnapshot calls fn with the current snapshot while holding the session
// lock. No event is emitted while fn runs, so a subscriber registered inside
// fn sees every change after the snapshot and none before it.
func (s *Session) WithSnapshot(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshotLocked())
}

func (s *Session) SetViewMode(mode trip.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidViewMode, mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.viewMode = mode
	s.emitLocked(Event{Kind: EventViewMode})
	return nil
}

func (s *Session) ToggleViewMode() (trip.ViewMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.viewMode, ErrSessionClosed
	}
	s.viewMode = s.viewMode.Toggle()
	s.emitLocked(Event{Kind: EventViewMode})
	return s.viewMode, nil
}

func (s *Session) Students() []trip.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]trip.Student, len(s.students))
	copy(out, s.students)
	return out
}

// ToggleBoarded flips the boarding flag of one student on the roster.
func (s *Session) ToggleBoarded(studentID string) (trip.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return trip.Student{}, ErrSessionClosed
	}
	for i := range s.students {
		if s.students[i].ID != studentID {
			continue
		}
		s.students[i].Boarded = !s.students[i].Boarded
		st := s.students[i]
		s.emitLocked(Event{Kind: EventBoarding, Student: &st})
		return st, nil
	}
	return trip.Student{}, fmt.Errorf("%w: %q", ErrUnknownStudent, studentID)
}

func (s *Session) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

// run executes the script for one run. Each effect waits for its absolute
// deadline t0+At, so a late wake-up catches up instead of drifting.
func (s *Session) run(ctx context.Context, gen uint64, t0 time.Time) {
	defer s.wg.Done()
	for _, e := range s.script {
		deadline := t0.Add(e.At)
		if wait := deadline.Sub(s.opts.Clock.Now()); wait > 0 {
			timer := s.opts.Clock.NewTimer(wait)
			// The clock may have jumped past the deadline while the timer was armed.
			if s.opts.Clock.Now().Before(deadline) {
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.Chan():
				}
			} else {
				timer.Stop()
			}
		}
		if ctx.Err() != nil {
			return
		}
		if !s.apply(gen, e, deadline) {
			return
		}
	}
}

// apply runs one effect if gen is still the current run. It reports whether
// the run should continue.
func (s *Session) apply(gen uint64, e Effect, deadline time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.running {
		return false
	}
	now := s.opts.Clock.Now()
	lag := now.Sub(deadline)

	if e.Notification != "" {
		n := trip.Notification{
			ID:        uuid.NewString(),
			Key:       e.Notification,
			Message:   s.opts.Localizer.Text(e.Notification),
			Time:      s.opts.Localizer.Clock(now.In(s.opts.Location)),
			Type:      e.Type,
			CreatedAt: now,
		}
		s.notifications = append([]trip.Notification{n}, s.notifications...)
		s.emitLocked(Event{Kind: EventNotification, Lag: lag, Notification: &n})
	}
	if e.Advance > 0 && s.progress < MaxProgress {
		s.progress += e.Advance
		if s.progress > MaxProgress {
			s.progress = MaxProgress
		}
		s.emitLocked(Event{Kind: EventProgress, Lag: lag})
	}
	if e.Status != "" && e.Status.Rank() > s.status.Rank() {
		s.status = e.Status
		s.emitLocked(Event{Kind: EventStatus, Lag: lag})
	}
	if e.Finish {
		s.running = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.opts.Logger.Info("simulation finished", slog.String("session_id", s.id))
		s.emitLocked(Event{Kind: EventFinished, Lag: lag})
		return false
	}
	return true
}

func (s *Session) emitLocked(e Event) {
	if len(s.opts.Sinks) == 0 {
		return
	}
	e.SessionID = s.id
	if e.At.IsZero() {
		e.At = s.opts.Clock.Now()
	}
	e.Snapshot = s.snapshotLocked()
	for _, sink := range s.opts.Sinks {
		sink.HandleEvent(e)
	}
}

func (s *Session) snapshotLocked() Snapshot {
	loc := s.opts.Localizer
	notes := make([]trip.Notification, len(s.notifications))
	copy(notes, s.notifications)

	steps := make([]trip.TimelineStep, 0, len(trip.Statuses))
	for _, st := range trip.Statuses {
		steps = append(steps, trip.TimelineStep{
			Status: st,
			Label:  loc.Text(stepLabels[st]),
			State:  trip.StepStateFor(st, s.status),
		})
	}

	boarded := 0
	for _, st := range s.students {
		if st.Boarded {
			boarded++
		}
	}

	snap := Snapshot{
		SessionID:     s.id,
		Running:       s.running,
		Status:        s.status,
		StatusLabel:   loc.Text(statusLabels[s.status]),
		Progress:      s.progress,
		Position:      s.opts.Route.Position(s.progress),
		Bearing:       s.opts.Route.Bearing(s.progress),
		ETAMinutes:    trip.ETAMinutes(s.progress),
		Notifications: notes,
		Timeline:      steps,
		ViewMode:      s.viewMode,
		BoardedCount:  boarded,
		StudentCount:  len(s.students),
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	return snap
}
