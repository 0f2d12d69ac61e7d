package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MohammedFaisal0/masari-safe/internal/sim"
)

// Sessions resolves the session a client wants to watch.
type Sessions interface {
	Get(id string) (*sim.Session, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer of the API router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades GET /api/sessions/{id}/ws. The first frame is a snapshot
// of the session, followed by one frame per event.
func Handler(hub *Hub, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := sessions.Get(id)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sim.ErrNoSession) {
				status = http.StatusNotFound
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": sim.ErrNoSession.Error()})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("ws upgrade failed", slog.String("session_id", id), slog.String("error", err.Error()))
			return
		}

		client := newClient(uuid.NewString(), sess.ID(), conn, hub)
		registered := false
		sess.WithSnapshot(func(snap sim.Snapshot) {
			data, err := json.Marshal(Message{Type: "snapshot", SessionID: snap.SessionID, Data: snap})
			if err != nil {
				return
			}
			client.send <- data
			registered = hub.add(client)
		})
		if !registered {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
