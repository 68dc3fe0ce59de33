package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Timeline event types. Booking events arrive from the provider webhook;
// contact events are logged manually by staff.
const (
	EventBookingCreated     = "booking.created"
	EventBookingRescheduled = "booking.rescheduled"
	EventBookingCancelled   = "booking.cancelled"
	EventContactPhone       = "contact.phone"
	EventContactWhatsApp    = "contact.whatsapp"
	EventContactEmail       = "contact.email"
	EventContactSMS         = "contact.sms"
)

// Timeline actor types.
const (
	ActorSystem  = "system"
	ActorStaff   = "staff"
	ActorPatient = "patient"
)

type TimelineEvent struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	EventType  string
	ActorType  string
	ActorID    *uuid.UUID
	Note       *string
	Payload    map[string]any
	OccurredAt time.Time
	CreatedAt  time.Time
}

type AppendTimelineEventParams struct {
	LeadID     uuid.UUID
	EventType  string
	ActorType  string
	ActorID    *uuid.UUID
	Note       *string
	Payload    map[string]any
	OccurredAt time.Time
}

// AppendTimelineEvent inserts an event. The timeline is append-only: there
// are no update or delete methods on purpose.
func (r *Repository) AppendTimelineEvent(ctx context.Context, params AppendTimelineEventParams) (TimelineEvent, error) {
	var payloadJSON []byte
	if params.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(params.Payload)
		if err != nil {
			return TimelineEvent{}, err
		}
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO lead_timeline_events (lead_id, event_type, actor_type, actor_id, note, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, lead_id, event_type, actor_type, actor_id, note, payload, occurred_at, created_at
	`, params.LeadID, params.EventType, params.ActorType, params.ActorID, params.Note, payloadJSON, occurredAt)

	return scanTimelineEvent(row)
}

// ListTimelineEvents returns a lead's events oldest first, the order the
// risk scorer walks them in.
func (r *Repository) ListTimelineEvents(ctx context.Context, leadID uuid.UUID) ([]TimelineEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, event_type, actor_type, actor_id, note, payload, occurred_at, created_at
		FROM lead_timeline_events
		WHERE lead_id = $1
		ORDER BY occurred_at ASC, created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]TimelineEvent, 0)
	for rows.Next() {
		event, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ReassignTimelineEvents moves a merged lead's history onto the canonical
// lead so no booking or contact event is lost.
func (r *Repository) ReassignTimelineEvents(ctx context.Context, fromLeadID, toLeadID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE lead_timeline_events SET lead_id = $2 WHERE lead_id = $1
	`, fromLeadID, toLeadID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanTimelineEvent(s leadRowScanner) (TimelineEvent, error) {
	var event TimelineEvent
	var payloadJSON []byte
	err := s.Scan(
		&event.ID, &event.LeadID, &event.EventType, &event.ActorType, &event.ActorID,
		&event.Note, &payloadJSON, &event.OccurredAt, &event.CreatedAt,
	)
	if err != nil {
		return TimelineEvent{}, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
			return TimelineEvent{}, err
		}
	}
	return event, nil
}
