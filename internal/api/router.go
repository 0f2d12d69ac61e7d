package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MohammedFaisal0/masari-safe/internal/db"
	"github.com/MohammedFaisal0/masari-safe/internal/logging"
	"github.com/MohammedFaisal0/masari-safe/internal/route"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/websocket"
)

// History serves journalled events. *db.Journal implements it.
type History interface {
	History(ctx context.Context, sessionID string, limit int) ([]db.Record, error)
}

type Deps struct {
	Manager     *sim.Manager
	Route       *route.Route
	Hub         *websocket.Hub
	History     History // nil when the journal is disabled
	Logger      *slog.Logger
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Route == nil {
		d.Route = route.Default()
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	h := &handlers{manager: d.Manager, route: d.Route, history: d.History}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/route", h.getRoute)
		r.Post("/sessions", h.createSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/start", h.start)
			r.Post("/stop", h.stop)
			r.Post("/reset", h.reset)
			r.Get("/notifications", h.notifications)
			r.Put("/view-mode", h.setViewMode)
			r.Post("/view-mode/toggle", h.toggleViewMode)
			r.Get("/students", h.students)
			r.Post("/students/{studentID}/board", h.toggleBoarded)
			r.Get("/history", h.sessionHistory)
			if d.Hub != nil {
				r.Get("/ws", websocket.Handler(d.Hub, d.Manager))
			}
		})
	})
	return r
}
