package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	mmetrics "github.com/MohammedFaisal0/masari-safe/internal/metrics"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

// Message is one frame of the live feed.
type Message struct {
	Type         string             `json:"type"`
	SessionID    string             `json:"sessionId"`
	Data         sim.Snapshot       `json:"data"`
	Notification *trip.Notification `json:"notification,omitempty"`
	Student      *trip.Student      `json:"student,omitempty"`
}

// Hub fans session events out to the WebSocket clients watching that session.
type Hub struct {
	logger  *slog.Logger
	metrics *mmetrics.Collector

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // session id -> clients
	closed  bool
}

func NewHub(logger *slog.Logger, metrics *mmetrics.Collector) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		clients: make(map[string]map[*Client]struct{}),
	}
}

// HandleEvent implements sim.Sink. Clients whose buffer is full are dropped.
func (h *Hub) HandleEvent(e sim.Event) {
	data, err := json.Marshal(Message{
		Type:         string(e.Kind),
		SessionID:    e.SessionID,
		Data:         e.Snapshot,
		Notification: e.Notification,
		Student:      e.Student,
	})
	if err != nil {
		h.logger.Error("marshal ws message failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[e.SessionID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws client buffer full, disconnecting", slog.String("session_id", e.SessionID), slog.String("client_id", c.ID))
			h.removeLocked(c)
		}
	}
	if e.Kind == sim.EventClosed {
		for c := range h.clients[e.SessionID] {
			h.removeLocked(c)
		}
	}
}

// Count returns the number of clients watching a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.SessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.SessionID] = set
	}
	set[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.WSClients.Inc()
	}
	h.logger.Info("ws client connected",
		slog.String("session_id", c.SessionID),
		slog.String("client_id", c.ID),
		slog.Int("session_clients", len(set)))
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.SessionID)
	}
	close(c.send)
	if h.metrics != nil {
		h.metrics.WSClients.Dec()
	}
	h.logger.Info("ws client disconnected", slog.String("session_id", c.SessionID), slog.String("client_id", c.ID))
}
