package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mmetrics "github.com/MohammedFaisal0/masari-safe/internal/metrics"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

var at = time.Date(2026, 9, 1, 6, 30, 1, 0, time.UTC)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestEnsureSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trip_events").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(context.Background(), sqlDB))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalWritesEvents(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	col := mmetrics.NewCollector()
	j := NewJournal(sqlDB, 8, quietLogger(), col)
	j.Start(context.Background())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trip_events")).
		WithArgs("s1", "notification", "home", 0.0, "n1", "وصل الباص للمنزل", "info", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trip_events")).
		WithArgs("s1", "progress", "home", 4.0, "", "", "", at).
		WillReturnResult(sqlmock.NewResult(2, 1))

	n := trip.Notification{ID: "n1", Message: "وصل الباص للمنزل", Type: trip.NotificationInfo}
	j.HandleEvent(sim.Event{Kind: sim.EventNotification, SessionID: "s1", At: at, Notification: &n,
		Snapshot: sim.Snapshot{Status: trip.StatusHome}})
	j.HandleEvent(sim.Event{Kind: sim.EventProgress, SessionID: "s1", At: at,
		Snapshot: sim.Snapshot{Status: trip.StatusHome, Progress: 4}})

	j.Close()
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 2.0, testutil.ToFloat64(col.JournalWrites))

	// Events after Close are ignored.
	assert.NotPanics(t, func() { j.HandleEvent(sim.Event{Kind: sim.EventStarted}) })
	assert.NotPanics(t, j.Close)
}

func TestJournalCountsWriteErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	col := mmetrics.NewCollector()
	j := NewJournal(sqlDB, 8, quietLogger(), col)
	j.Start(context.Background())

	mock.ExpectExec("INSERT INTO trip_events").WillReturnError(errors.New("connection refused"))
	j.HandleEvent(sim.Event{Kind: sim.EventStarted, SessionID: "s1", At: at})
	j.Close()

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(col.JournalWriteErrs))
}

func TestJournalDropsWhenFull(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	col := mmetrics.NewCollector()
	j := NewJournal(sqlDB, 1, quietLogger(), col)
	// No worker: the second event finds the queue full.
	j.HandleEvent(sim.Event{Kind: sim.EventStarted, SessionID: "s1", At: at})
	j.HandleEvent(sim.Event{Kind: sim.EventStopped, SessionID: "s1", At: at})

	assert.Equal(t, 1.0, testutil.ToFloat64(col.JournalDropped))
}

func TestFetchHistory(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	rows := sqlmock.NewRows([]string{"session_id", "kind", "status", "progress", "notification_id", "message", "type", "occurred_at"}).
		AddRow("s1", "finished", "at-school", 100.0, "", "", "", at.Add(27*time.Second)).
		AddRow("s1", "started", "home", 0.0, "", "", "", at.Add(-time.Second))
	mock.ExpectQuery("SELECT session_id, kind").WithArgs("s1", 100).WillReturnRows(rows)

	got, err := FetchHistory(context.Background(), sqlDB, "s1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "finished", got[0].Kind)
	assert.Equal(t, 100.0, got[0].Progress)
	assert.Equal(t, "started", got[1].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}
