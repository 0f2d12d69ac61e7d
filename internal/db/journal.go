package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	mmetrics "github.com/MohammedFaisal0/masari-safe/internal/metrics"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
)

// Journal records session events in trip_events from a background worker.
// HandleEvent never blocks; events are dropped when the queue is full.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *mmetrics.Collector
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan Record
	wg     sync.WaitGroup
}

func NewJournal(db *sql.DB, queueSize int, logger *slog.Logger, metrics *mmetrics.Collector) *Journal {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		db:      db,
		logger:  logger,
		metrics: metrics,
		timeout: 3 * time.Second,
		queue:   make(chan Record, queueSize),
	}
}

// Start launches the writer. It drains the queue until Close.
func (j *Journal) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for r := range j.queue {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
			err := InsertRecord(wctx, j.db, r)
			cancel()
			if err != nil {
				j.logger.Error("journal write failed", slog.String("session_id", r.SessionID), slog.String("error", err.Error()))
				if j.metrics != nil {
					j.metrics.JournalWriteErrs.Inc()
				}
				continue
			}
			if j.metrics != nil {
				j.metrics.JournalWrites.Inc()
			}
		}
	}()
}

func (j *Journal) HandleEvent(e sim.Event) {
	r := Record{
		SessionID:  e.SessionID,
		Kind:       string(e.Kind),
		Status:     string(e.Snapshot.Status),
		Progress:   e.Snapshot.Progress,
		OccurredAt: e.At,
	}
	if n := e.Notification; n != nil {
		r.NotificationID = n.ID
		r.Message = n.Message
		r.Type = string(n.Type)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- r:
	default:
		j.logger.Warn("journal queue full, dropping event", slog.String("session_id", r.SessionID), slog.String("kind", r.Kind))
		if j.metrics != nil {
			j.metrics.JournalDropped.Inc()
		}
	}
}

// Close stops accepting events and waits for queued writes to finish.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	j.wg.Wait()
}

// History returns journalled events for a session.
func (j *Journal) History(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	return FetchHistory(ctx, j.db, sessionID, limit)
}
