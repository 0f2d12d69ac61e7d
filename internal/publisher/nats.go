package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	nc          *nats.Conn
	conn        Conn
	prefix      string
	logSubjects bool
	logger      *slog.Logger
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, logger *slog.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("masari-safe"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := New(nc, prefix, logSubjects, logger, m)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection.
func New(conn Conn, prefix string, logSubjects bool, logger *slog.Logger, m PublisherMetrics) *NATSPublisher {
	if prefix == "" {
		prefix = "trip"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, prefix: subjectToken(prefix), logSubjects: logSubjects, logger: logger, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	SessionID string      `json:"sessionId"`
	Timestamp time.Time   `json:"timestamp"`
	Lat       float64     `json:"lat"`
	Lon       float64     `json:"lon"`
	Bearing   float64     `json:"bearing"`
	Progress  float64     `json:"progress"`
	Status    trip.Status `json:"status"`
	Running   bool        `json:"running"`
}

type EventMessage struct {
	SessionID    string             `json:"sessionId"`
	Kind         sim.EventKind      `json:"kind"`
	Timestamp    time.Time          `json:"timestamp"`
	Status       trip.Status        `json:"status"`
	Progress     float64            `json:"progress"`
	Notification *trip.Notification `json:"notification,omitempty"`
}

// HandleEvent publishes positions on <prefix>.<session>.position and every
// other state change on <prefix>.<session>.event.
func (p *NATSPublisher) HandleEvent(e sim.Event) {
	var err error
	if e.Kind == sim.EventProgress || e.Kind == sim.EventReset {
		err = p.PublishPosition(e.SessionID, PositionMessage{
			SessionID: e.SessionID,
			Timestamp: e.At,
			Lat:       e.Snapshot.Position.Lat,
			Lon:       e.Snapshot.Position.Lon,
			Bearing:   e.Snapshot.Bearing,
			Progress:  e.Snapshot.Progress,
			Status:    e.Snapshot.Status,
			Running:   e.Snapshot.Running,
		})
	}
	if e.Kind != sim.EventProgress {
		err = errors.Join(err, p.PublishEvent(e.SessionID, EventMessage{
			SessionID:    e.SessionID,
			Kind:         e.Kind,
			Timestamp:    e.At,
			Status:       e.Snapshot.Status,
			Progress:     e.Snapshot.Progress,
			Notification: e.Notification,
		}))
	}
	if err != nil {
		p.logger.Error("nats publish failed",
			slog.String("session_id", e.SessionID),
			slog.String("kind", string(e.Kind)),
			slog.String("error", err.Error()))
	}
}

func (p *NATSPublisher) PublishPosition(sessionID string, msg PositionMessage) error {
	return p.publish(p.subject(sessionID, "position"), msg)
}

func (p *NATSPublisher) PublishEvent(sessionID string, msg EventMessage) error {
	return p.publish(p.subject(sessionID, "event"), msg)
}

func (p *NATSPublisher) subject(sessionID, kind string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(sessionID), kind)
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.logger.Debug("nats publish", slog.String("subject", subject))
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
