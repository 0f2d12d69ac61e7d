package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohammedFaisal0/masari-safe/internal/db"
	"github.com/MohammedFaisal0/masari-safe/internal/route"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

type fakeHistory struct {
	records []db.Record
	err     error
	limit   int
}

func (f *fakeHistory) History(_ context.Context, _ string, limit int) ([]db.Record, error) {
	f.limit = limit
	return f.records, f.err
}

type testAPI struct {
	handler http.Handler
	manager *sim.Manager
	clock   clockwork.FakeClock
}

func newTestAPI(t *testing.T, history History) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fc := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 6, 30, 0, 0, time.UTC))
	m := sim.NewManager(sim.Options{Clock: fc, Location: time.UTC, Logger: logger}, nil)
	t.Cleanup(m.Stop)
	h := NewRouter(Deps{Manager: m, Route: route.Default(), History: history, Logger: logger})
	return &testAPI{handler: h, manager: m, clock: fc}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) create(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	snap := decode[sim.Snapshot](t, rec)
	require.NotEmpty(t, snap.SessionID)
	return snap.SessionID
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetRoute(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(t, http.MethodGet, "/api/route", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[routeResponse](t, rec)
	r := route.Default()
	assert.Equal(t, r.Points(), got.Points)
	assert.Equal(t, r.Home(), got.Home)
	assert.Equal(t, r.School(), got.School)
	assert.Greater(t, got.LengthMeters, 0.0)
}

func TestCreateAndGetSession(t *testing.T) {
	a := newTestAPI(t, nil)
	id := a.create(t)

	rec := a.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[sim.Snapshot](t, rec)
	assert.Equal(t, trip.StatusHome, snap.Status)
	assert.Equal(t, 5, snap.ETAMinutes)
	assert.Equal(t, trip.ViewParent, snap.ViewMode)
	require.Len(t, snap.Timeline, 3)
	assert.Equal(t, trip.StepCurrent, snap.Timeline[0].State)
	assert.Equal(t, "[]", strings.TrimSpace(a.do(t, http.MethodGet, "/api/sessions/"+id+"/notifications", "").Body.String()))
}

func TestUnknownSession(t *testing.T) {
	a := newTestAPI(t, nil)
	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions/nope"},
		{http.MethodPost, "/api/sessions/nope/start"},
		{http.MethodPost, "/api/sessions/nope/stop"},
		{http.MethodPost, "/api/sessions/nope/reset"},
		{http.MethodGet, "/api/sessions/nope/students"},
		{http.MethodDelete, "/api/sessions/nope"},
	} {
		rec := a.do(t, c.method, c.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, c.path)
		assert.JSONEq(t, `{"error":"simulation session not initialized"}`, rec.Body.String(), c.path)
	}
}

func TestStartStopReset(t *testing.T) {
	a := newTestAPI(t, nil)
	id := a.create(t)
	s, err := a.manager.Get(id)
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/sessions/"+id+"/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[sim.Snapshot](t, rec).Running)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), sim.ErrAlreadyRunning.Error())

	a.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Status == trip.StatusInBus && snap.Progress == 20
	}, time.Second, 5*time.Millisecond)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stopped := decode[sim.Snapshot](t, rec)
	assert.False(t, stopped.Running)
	assert.Equal(t, trip.StatusInBus, stopped.Status)
	assert.Equal(t, 20.0, stopped.Progress)

	rec = a.do(t, http.MethodGet, "/api/sessions/"+id+"/notifications", "")
	notes := decode[[]trip.Notification](t, rec)
	require.Len(t, notes, 2)
	assert.Equal(t, "student_left_home", notes[0].Key)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reset := decode[sim.Snapshot](t, rec)
	assert.Equal(t, trip.StatusHome, reset.Status)
	assert.Equal(t, 0.0, reset.Progress)
	assert.Empty(t, reset.Notifications)
}

func TestViewMode(t *testing.T) {
	a := newTestAPI(t, nil)
	id := a.create(t)

	rec := a.do(t, http.MethodPut, "/api/sessions/"+id+"/view-mode", `{"mode":"driver"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, trip.ViewDriver, decode[sim.Snapshot](t, rec).ViewMode)

	rec = a.do(t, http.MethodPut, "/api/sessions/"+id+"/view-mode", `{"mode":"pilot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/sessions/"+id+"/view-mode", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/view-mode/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, trip.ViewParent, decode[sim.Snapshot](t, rec).ViewMode)
}

func TestStudents(t *testing.T) {
	a := newTestAPI(t, nil)
	id := a.create(t)

	rec := a.do(t, http.MethodGet, "/api/sessions/"+id+"/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[studentsResponse](t, rec)
	assert.Len(t, list.Students, 4)
	assert.Equal(t, 0, list.BoardedCount)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/students/2/board", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[trip.Student](t, rec)
	assert.Equal(t, "2", st.ID)
	assert.True(t, st.Boarded)

	list = decode[studentsResponse](t, a.do(t, http.MethodGet, "/api/sessions/"+id+"/students", ""))
	assert.Equal(t, 1, list.BoardedCount)

	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/students/99/board", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	a := newTestAPI(t, nil)
	id := a.create(t)

	rec := a.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, a.manager.Len())
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/sessions/"+id, "").Code)
}

func TestHistory(t *testing.T) {
	at := time.Date(2026, 9, 1, 6, 30, 1, 0, time.UTC)
	hist := &fakeHistory{records: []db.Record{{SessionID: "s1", Kind: "started", Status: "home", OccurredAt: at}}}
	a := newTestAPI(t, hist)

	rec := a.do(t, http.MethodGet, "/api/sessions/s1/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]db.Record](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "started", got[0].Kind)
	assert.Equal(t, 10, hist.limit)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/sessions/s1/history?limit=x", "").Code)

	hist.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, a.do(t, http.MethodGet, "/api/sessions/s1/history", "").Code)
}

func TestHistoryDisabled(t *testing.T) {
	a := newTestAPI(t, nil)
	assert.Equal(t, http.StatusNotImplemented, a.do(t, http.MethodGet, "/api/sessions/s1/history", "").Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(sim.ErrAlreadyRunning))
	assert.Equal(t, http.StatusGone, statusFor(sim.ErrSessionClosed))
	assert.Equal(t, http.StatusBadRequest, statusFor(sim.ErrInvalidViewMode))
	assert.Equal(t, http.StatusNotFound, statusFor(sim.ErrUnknownStudent))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
