package trip

import (
	"fmt"
	"math"
	"time"
)

// Status is the discrete phase of a simulated trip.
type Status string

const (
	StatusHome     Status = "home"
	StatusInBus    Status = "in-bus"
	StatusAtSchool Status = "at-school"
)

// Statuses lists the trip phases in the order a run visits them.
var Statuses = []Status{StatusHome, StatusInBus, StatusAtSchool}

// Rank returns the position of s within Statuses, or -1 if s is unknown.
func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool { return s.Rank() >= 0 }

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
)

// Notification is a timestamped trip event shown in the feed. Immutable once created.
type Notification struct {
	ID        string           `json:"id"`
	Key       string           `json:"key"`
	Message   string           `json:"message"`
	Time      string           `json:"time"` // localised hh:mm
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"createdAt"`
}

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) String() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon) }

type ViewMode string

const (
	ViewParent ViewMode = "parent"
	ViewDriver ViewMode = "driver"
)

func (m ViewMode) Valid() bool { return m == ViewParent || m == ViewDriver }

// Toggle returns the other view mode.
func (m ViewMode) Toggle() ViewMode {
	if m == ViewDriver {
		return ViewParent
	}
	return ViewDriver
}

type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Grade   string `json:"grade"`
	Phone   string `json:"phone"`
	Boarded bool   `json:"boarded"`
}

// DefaultRoster returns a fresh copy of the bus roster.
func DefaultRoster() []Student {
	return []Student{
		{ID: "1", Name: "الهنوف الحربي", Grade: "الصف الثالث", Phone: "0512345678"},
		{ID: "2", Name: "سارة خالد", Grade: "الصف الخامس", Phone: "0523456789"},
		{ID: "3", Name: "عبدالله فهد", Grade: "الصف الثاني", Phone: "0534567890"},
		{ID: "4", Name: "نورة سعود", Grade: "الصف الرابع", Phone: "0545678901"},
	}
}

type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepUpcoming  StepState = "upcoming"
)

type TimelineStep struct {
	Status Status    `json:"status"`
	Label  string    `json:"label"`
	State  StepState `json:"state"`
}

// StepStateFor reports how step relates to the current status.
func StepStateFor(step, current Status) StepState {
	si, ci := step.Rank(), current.Rank()
	switch {
	case si < ci:
		return StepCompleted
	case si == ci:
		return StepCurrent
	default:
		return StepUpcoming
	}
}

// ETAMinutes estimates minutes to school from route progress in [0,100].
func ETAMinutes(progress float64) int {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	remaining := 100 - progress
	return int(math.Ceil(remaining * 5 / 100))
}
