package sim

import (
	"sort"
	"time"

	"github.com/MohammedFaisal0/masari-safe/internal/i18n"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

const (
	ProgressStep     = 4.0
	ProgressInterval = time.Second
	MaxProgress      = 100.0
)

// Effect is one scheduled state change, relative to the start of a run.
type Effect struct {
	At           time.Duration
	Notification string // message key; empty for none
	Type         trip.NotificationType
	Status       trip.Status // empty keeps the current status
	Advance      float64
	Finish       bool
}

// Script returns the fixed trip timeline ordered by offset. Effects sharing
// an offset keep notification before progress.
func Script() []Effect {
	effects := []Effect{
		{At: 1 * time.Second, Notification: i18n.BusArrivedHome, Type: trip.NotificationInfo},
		{At: 5 * time.Second, Notification: i18n.StudentLeftHome, Type: trip.NotificationInfo, Status: trip.StatusInBus},
		{At: 9 * time.Second, Notification: i18n.StudentBoardedBus, Type: trip.NotificationSuccess},
		{At: 28 * time.Second, Notification: i18n.StudentArrivedSafely, Type: trip.NotificationSuccess, Status: trip.StatusAtSchool, Finish: true},
	}
	progress := 0.0
	for at := ProgressInterval; progress < MaxProgress; at += ProgressInterval {
		progress += ProgressStep
		effects = append(effects, Effect{At: at, Advance: ProgressStep})
	}
	sort.SliceStable(effects, func(i, j int) bool { return effects[i].At < effects[j].At })
	return effects
}

// Duration is the offset of the last effect in script.
func Duration(script []Effect) time.Duration {
	var d time.Duration
	for _, e := range script {
		if e.At > d {
			d = e.At
		}
	}
	return d
}
