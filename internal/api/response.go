package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MohammedFaisal0/masari-safe/internal/logging"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
)

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrNoSession), errors.Is(err, sim.ErrUnknownStudent):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, sim.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, sim.ErrInvalidViewMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sessionError writes err with the status its sentinel maps to. Unknown
// session ids always report the bare "not initialized" message.
func sessionError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, sim.ErrNoSession):
		msg = sim.ErrNoSession.Error()
	case status == http.StatusInternalServerError:
		logging.LogError(logging.FromContext(r.Context()), "request failed", err, slog.String("path", r.URL.Path))
		msg = "internal error"
	}
	Error(w, status, msg)
}
