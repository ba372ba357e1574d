package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/metrics"
)

const (
	// ListEvents clamps page sizes to keep webhook-consumer queries cheap.
	defaultEventLimit = 50
	maxEventLimit     = 200
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS delivery_events (
	id          UUID PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	email_id    TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	webhook_id  TEXT,
	metadata    JSONB NOT NULL DEFAULT '{}',
	processed   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS delivery_events_webhook_key
	ON delivery_events (tenant_id, email_id, event_type, webhook_id)
	WHERE webhook_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS delivery_events_occurrence_key
	ON delivery_events (tenant_id, email_id, event_type, occurred_at)
	WHERE webhook_id IS NULL;

CREATE INDEX IF NOT EXISTS delivery_events_lookup
	ON delivery_events (tenant_id, email_id, occurred_at DESC);
`

// EventStore is the append-only delivery event log. Uniqueness is enforced
// by the database: events carrying a webhook ID deduplicate on it, events
// without one deduplicate on their occurrence timestamp.
type EventStore struct {
	db *DB
}

// NewEventStore initializes the schema and returns an EventStore.
func NewEventStore(ctx context.Context, db *DB) (*EventStore, error) {
	if _, err := db.Pool.Exec(ctx, eventsSchema); err != nil {
		return nil, fmt.Errorf("init delivery_events schema: %w", err)
	}
	return &EventStore{db: db}, nil
}

// InsertEvent appends an event with insert-or-ignore semantics. It reports
// false when an event with the same identity already exists; concurrent
// inserts of the same event resolve to exactly one row.
func (s *EventStore) InsertEvent(ctx context.Context, evt *delivery.Event) (bool, error) {
	meta, err := json.Marshal(evt.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal event metadata: %w", err)
	}

	webhookID := pgtype.Text{String: evt.WebhookID, Valid: evt.WebhookID != ""}

	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO delivery_events (id, tenant_id, email_id, event_type, occurred_at, webhook_id, metadata, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`, evt.ID, evt.TenantID, evt.EmailID, string(evt.Type), evt.OccurredAt, webhookID, meta, evt.Processed)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("insert_event").Inc()
		return false, fmt.Errorf("insert delivery event: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkEventProcessed flips the processed flag after side effects complete.
func (s *EventStore) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE delivery_events SET processed = TRUE WHERE id = $1
	`, id)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("mark_event_processed").Inc()
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// EventFilter narrows a ListEvents query. Zero values mean "any".
type EventFilter struct {
	TenantID  string
	EmailID   string
	EventType string
	Limit     int
	Offset    int
}

// Normalize applies the default limit and the hard cap.
func (f *EventFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultEventLimit
	}
	if f.Limit > maxEventLimit {
		f.Limit = maxEventLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListEvents returns events matching the filter, newest first.
func (s *EventStore) ListEvents(ctx context.Context, filter EventFilter) ([]*delivery.Event, error) {
	filter.Normalize()

	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	if filter.EmailID != "" {
		add("email_id = $%d", filter.EmailID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}

	query := `SELECT id, tenant_id, email_id, event_type, occurred_at, webhook_id, metadata, processed
		FROM delivery_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("list_events").Inc()
		return nil, fmt.Errorf("list delivery events: %w", err)
	}
	defer rows.Close()

	var events []*delivery.Event
	for rows.Next() {
		var (
			evt       delivery.Event
			eventType string
			webhookID pgtype.Text
			meta      []byte
		)
		if err := rows.Scan(&evt.ID, &evt.TenantID, &evt.EmailID, &eventType,
			&evt.OccurredAt, &webhookID, &meta, &evt.Processed); err != nil {
			return nil, fmt.Errorf("scan delivery event: %w", err)
		}
		evt.Type = delivery.EventType(eventType)
		if webhookID.Valid {
			evt.WebhookID = webhookID.String
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &evt.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, &evt)
	}
	return events, rows.Err()
}
