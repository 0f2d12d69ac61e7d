package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS trip_events (
  id              BIGSERIAL PRIMARY KEY,
  session_id      TEXT NOT NULL,
  kind            TEXT NOT NULL,
  status          TEXT NOT NULL,
  progress        DOUBLE PRECISION NOT NULL,
  notification_id TEXT NOT NULL DEFAULT '',
  message         TEXT NOT NULL DEFAULT '',
  type            TEXT NOT NULL DEFAULT '',
  occurred_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trip_events_session_idx ON trip_events (session_id, occurred_at);
`

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create trip_events: %w", err)
	}
	return nil
}

// Record is one journalled trip event.
type Record struct {
	SessionID      string    `json:"sessionId"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	Progress       float64   `json:"progress"`
	NotificationID string    `json:"notificationId,omitempty"`
	Message        string    `json:"message,omitempty"`
	Type           string    `json:"type,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func InsertRecord(ctx context.Context, db *sql.DB, r Record) error {
	q := `INSERT INTO trip_events (session_id, kind, status, progress, notification_id, message, type, occurred_at)
          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := db.ExecContext(ctx, q, r.SessionID, r.Kind, r.Status, r.Progress, r.NotificationID, r.Message, r.Type, r.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert trip_event: %w", err)
	}
	return nil
}

// FetchHistory returns the newest events of a session, newest first.
func FetchHistory(ctx context.Context, db *sql.DB, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT session_id, kind, status, progress, notification_id, message, type, occurred_at
          FROM trip_events WHERE session_id = $1
          ORDER BY occurred_at DESC, id DESC LIMIT $2`
	rows, err := db.QueryContext(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trip_events: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SessionID, &r.Kind, &r.Status, &r.Progress, &r.NotificationID, &r.Message, &r.Type, &r.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
