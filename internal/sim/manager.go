package sim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	mmetrics "github.com/MohammedFaisal0/masari-safe/internal/metrics"
)

// Manager owns the sessions of all connected clients. A session exists from
// Create until Close; lookups outside that window fail with ErrNoSession.
type Manager struct {
	opts    Options
	metrics *mmetrics.Collector

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(opts Options, metrics *mmetrics.Collector) *Manager {
	m := &Manager{
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
	if metrics != nil {
		opts.Sinks = append(append([]Sink(nil), opts.Sinks...), metricsSink{c: metrics})
	}
	m.opts = opts.withDefaults()
	return m
}

// AddSink registers a sink for sessions created after the call.
func (m *Manager) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Sinks = append(append([]Sink(nil), m.opts.Sinks...), s)
}

func (m *Manager) Create() *Session {
	id := uuid.NewString()
	m.mu.Lock()
	s := NewSession(id, m.opts)
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionsCreated.Inc()
		m.metrics.ActiveSessions.Set(float64(n))
	}
	m.opts.Logger.Info("session created", slog.String("session_id", id))
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSession, id)
	}
	return s, nil
}

// Close tears a session down and cancels its pending effects.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSession, id)
	}
	s.Close()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(n))
	}
	m.opts.Logger.Info("session closed", slog.String("session_id", id))
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop closes every session and waits for their timelines to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(0)
	}
}

type metricsSink struct{ c *mmetrics.Collector }

func (ms metricsSink) HandleEvent(e Event) {
	switch e.Kind {
	case EventStarted:
		ms.c.RunsStarted.Inc()
		ms.c.RunningTrips.Inc()
	case EventFinished:
		ms.c.RunsFinished.Inc()
		ms.c.RunningTrips.Dec()
	case EventStopped, EventReset, EventClosed:
		if e.Interrupted {
			ms.c.RunsCancelled.WithLabelValues(string(e.Kind)).Inc()
			ms.c.RunningTrips.Dec()
		}
	case EventNotification:
		if e.Notification != nil {
			ms.c.Notifications.WithLabelValues(string(e.Notification.Type)).Inc()
		}
	}
	switch e.Kind {
	case EventNotification, EventProgress, EventStatus, EventFinished:
		ms.c.EffectLag.Observe(e.Lag.Seconds())
	}
}
