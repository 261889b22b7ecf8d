package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "landtrust/pkg/domain"
	audit "landtrust/pkg/platform/audit"
	txcontext "landtrust/pkg/platform/tx"
)

// Store persists admin events in the admin_events table. Appends join the
// transaction carried in ctx, so a status change and its event commit together.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an event. Idempotent on id via ON CONFLICT DO NOTHING.
func (s *Store) Append(ctx context.Context, event audit.AdminEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal admin event metadata: %w", err)
	}
	if event.Metadata == nil {
		metadata = []byte("{}")
	}

	var actorID *uuid.UUID
	if !event.ActorID.IsNil() {
		a := uuid.UUID(event.ActorID)
		actorID = &a
	}

	query := `
		INSERT INTO admin_events (id, subject, event_type, actor_id, actor_email, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		event.Subject,
		string(event.Type),
		actorID,
		event.ActorEmail,
		event.Message,
		metadata,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.AdminEvent, error) {
	query := `
		SELECT id, subject, event_type, actor_id, actor_email, message, metadata, created_at
		FROM admin_events
		WHERE subject = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query admin events: %w", err)
	}
	defer rows.Close()

	var events []audit.AdminEvent
	for rows.Next() {
		var (
			event     audit.AdminEvent
			eventID   uuid.UUID
			actorID   uuid.NullUUID
			eventType string
			metadata  []byte
		)
		if err := rows.Scan(&eventID, &event.Subject, &eventType, &actorID,
			&event.ActorEmail, &event.Message, &metadata, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin event: %w", err)
		}
		event.ID = id.EventID(eventID)
		event.Type = audit.EventType(eventType)
		if actorID.Valid {
			event.ActorID = id.UserID(actorID.UUID)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal admin event metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin events: %w", err)
	}
	return events, nil
}
