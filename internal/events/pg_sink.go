package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is the slice of *pgxpool.Pool the sink needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createEventsTable = `
CREATE TABLE IF NOT EXISTS session_events (
	id         UUID PRIMARY KEY,
	event_type TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PgSink struct {
	db execer
}

func NewPgSink(db execer) *PgSink {
	return &PgSink{db: db}
}

// EnsureSchema creates the append-only audit table when missing.
func (s *PgSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create session_events: %w", err)
	}
	return nil
}

func (s *PgSink) Write(ctx context.Context, ev Event) error {
	var payload any
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO session_events (id, event_type, subject, payload, created_at)
		VALUES (@id, @event_type, @subject, @payload, @created_at)
	`, pgx.NamedArgs{
		"id":         ev.ID,
		"event_type": ev.Type,
		"subject":    ev.Subject,
		"payload":    payload,
		"created_at": ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}
