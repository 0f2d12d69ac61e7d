package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MohammedFaisal0/masari-safe/internal/route"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

type handlers struct {
	manager *sim.Manager
	route   *route.Route
	history History
}

type routeResponse struct {
	Name         string            `json:"name"`
	Points       []trip.Coordinate `json:"points"`
	Home         trip.Coordinate   `json:"home"`
	School       trip.Coordinate   `json:"school"`
	LengthMeters float64           `json:"lengthMeters"`
}

type studentsResponse struct {
	Students     []trip.Student `json:"students"`
	BoardedCount int            `json:"boardedCount"`
	StudentCount int            `json:"studentCount"`
}

type viewModeRequest struct {
	Mode trip.ViewMode `json:"mode"`
}

func (h *handlers) getRoute(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, routeResponse{
		Name:         h.route.Name,
		Points:       h.route.Points(),
		Home:         h.route.Home(),
		School:       h.route.School(),
		LengthMeters: h.route.LengthMeters(),
	})
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()
	JSON(w, http.StatusCreated, s.Snapshot())
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) (*sim.Session, bool) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		sessionError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		JSON(w, http.StatusOK, s.Snapshot())
	}
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(chi.URLParam(r, "id")); err != nil {
		sessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// command runs one lifecycle operation and replies with the new snapshot.
func (h *handlers) command(op func(*sim.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		if err := op(s); err != nil {
			sessionError(w, r, err)
			return
		}
		JSON(w, http.StatusOK, s.Snapshot())
	}
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	h.command((*sim.Session).Start)(w, r)
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.command((*sim.Session).Stop)(w, r)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	h.command((*sim.Session).Reset)(w, r)
}

func (h *handlers) notifications(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		JSON(w, http.StatusOK, s.Snapshot().Notifications)
	}
}

func (h *handlers) setViewMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req viewModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.SetViewMode(req.Mode); err != nil {
		sessionError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

func (h *handlers) toggleViewMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.ToggleViewMode(); err != nil {
		sessionError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

func (h *handlers) students(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	students := s.Students()
	boarded := 0
	for _, st := range students {
		if st.Boarded {
			boarded++
		}
	}
	JSON(w, http.StatusOK, studentsResponse{Students: students, BoardedCount: boarded, StudentCount: len(students)})
}

func (h *handlers) toggleBoarded(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := s.ToggleBoarded(chi.URLParam(r, "studentID"))
	if err != nil {
		sessionError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// sessionHistory reads the journal, which keeps events of closed sessions too.
func (h *handlers) sessionHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		Error(w, http.StatusNotImplemented, "event journal disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := h.history.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		sessionError(w, r, err)
		return
	}
	if records == nil {
		JSON(w, http.StatusOK, []any{})
		return
	}
	JSON(w, http.StatusOK, records)
}
