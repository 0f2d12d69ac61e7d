package sim

import (
	"errors"
	"time"

	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

var (
	ErrNoSession       = errors.New("simulation session not initialized")
	ErrAlreadyRunning  = errors.New("simulation already running")
	ErrSessionClosed   = errors.New("simulation session closed")
	ErrUnknownStudent  = errors.New("unknown student")
	ErrInvalidViewMode = errors.New("invalid view mode")
)

type EventKind string

const (
	EventStarted      EventKind = "started"
	EventStopped      EventKind = "stopped"
	EventReset        EventKind = "reset"
	EventProgress     EventKind = "progress"
	EventStatus       EventKind = "status"
	EventNotification EventKind = "notification"
	EventFinished     EventKind = "finished"
	EventViewMode     EventKind = "view_mode"
	EventBoarding     EventKind = "boarding"
	EventClosed       EventKind = "closed"
)

// Event is a state change of one session. Snapshot is taken after the change.
type Event struct {
	Kind         EventKind
	SessionID    string
	At           time.Time
	Lag          time.Duration // how late a timeline effect ran
	Interrupted  bool          // a stop, reset or close cut an active run short
	Snapshot     Snapshot
	Notification *trip.Notification
	Student      *trip.Student
}

// Sink receives session events. HandleEvent is called with the session lock
// held, so it must not block or call back into the session.
type Sink interface {
	HandleEvent(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(e Event) { f(e) }

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	SessionID     string              `json:"sessionId"`
	Running       bool                `json:"running"`
	Status        trip.Status         `json:"status"`
	StatusLabel   string              `json:"statusLabel"`
	Progress      float64             `json:"progress"`
	Position      trip.Coordinate     `json:"position"`
	Bearing       float64             `json:"bearing"`
	ETAMinutes    int                 `json:"etaMinutes"`
	Notifications []trip.Notification `json:"notifications"`
	Timeline      []trip.TimelineStep `json:"timeline"`
	ViewMode      trip.ViewMode       `json:"viewMode"`
	BoardedCount  int                 `json:"boardedCount"`
	StudentCount  int                 `json:"studentCount"`
	StartedAt     *time.Time          `json:"startedAt,omitempty"`
}
