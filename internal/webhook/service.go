package webhook

import (
	"context"
	"errors"
	"strings"
	"time"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

// Booking provider trigger names, mapped onto timeline event types.
var triggerEventTypes = map[string]string{
	"BOOKING_CREATED":     repository.EventBookingCreated,
	"BOOKING_RESCHEDULED": repository.EventBookingRescheduled,
	"BOOKING_CANCELLED":   repository.EventBookingCancelled,
}

// BookingPayload is the provider's callback body, reduced to the fields
// the timeline cares about.
type BookingPayload struct {
	TriggerEvent string     `json:"triggerEvent" validate:"required"`
	BookingUID   string     `json:"bookingUid" validate:"required"`
	Email        string     `json:"email" validate:"omitempty,email"`
	Name         string     `json:"name"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	OccurredAt   *time.Time `json:"occurredAt"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Service struct {
	repo repository.LeadsRepository
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repository.LeadsRepository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// HandleBookingEvent resolves the lead a booking belongs to and appends
// the event to its timeline. Leads are matched by booking reference first,
// then by the canonical lead for the booker's email. Events that match no
// lead are logged and dropped; the provider should not retry them.
func (s *Service) HandleBookingEvent(ctx context.Context, payload BookingPayload) error {
	eventType, ok := triggerEventTypes[payload.TriggerEvent]
	if !ok {
		return apperr.Validation("unsupported trigger event").WithOp("webhook.HandleBookingEvent")
	}

	lead, err := s.resolveLead(ctx, payload)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("booking event matched no lead",
				"trigger", payload.TriggerEvent, "booking_uid", payload.BookingUID)
			return nil
		}
		return err
	}

	occurredAt := s.now()
	if payload.OccurredAt != nil {
		occurredAt = payload.OccurredAt.UTC()
	}

	eventPayload := map[string]any{"booking_uid": payload.BookingUID}
	if payload.StartTime != nil {
		eventPayload["start_time"] = payload.StartTime.UTC().Format(time.RFC3339)
	}
	if payload.EndTime != nil {
		eventPayload["end_time"] = payload.EndTime.UTC().Format(time.RFC3339)
	}

	if _, err := s.repo.AppendTimelineEvent(ctx, repository.AppendTimelineEventParams{
		LeadID:     lead.ID,
		EventType:  eventType,
		ActorType:  repository.ActorSystem,
		Payload:    eventPayload,
		OccurredAt: occurredAt,
	}); err != nil {
		return apperr.Wrap(apperr.KindInternal, "append booking event", err).WithOp("webhook.HandleBookingEvent")
	}

	if eventType == repository.EventBookingCreated && lead.Status == repository.StatusNew {
		if err := s.repo.UpdateStatus(ctx, lead.ID, repository.StatusBooked); err != nil {
			s.log.Warn("status advance after booking failed", "lead_id", lead.ID.String(), "error", err.Error())
		}
	}

	s.bus.Publish(ctx, events.BookingEventReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		EventType: eventType,
	})
	return nil
}

func (s *Service) resolveLead(ctx context.Context, payload BookingPayload) (repository.Lead, error) {
	lead, err := s.repo.GetByBookingRef(ctx, payload.BookingUID)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "lookup by booking ref", err)
	}

	if payload.Email == "" {
		return repository.Lead{}, apperr.NotFound("no lead for booking")
	}

	active, err := s.repo.ListActiveByEmail(ctx, normalizeEmail(payload.Email))
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "lookup by email", err)
	}
	if len(active) == 0 {
		return repository.Lead{}, apperr.NotFound("no lead for booking")
	}

	// First booking event for this lead: remember the reference so later
	// reschedules and cancellations match directly.
	lead = active[0]
	if lead.BookingRef == nil {
		if err := s.repo.SetBookingRef(ctx, lead.ID, payload.BookingUID); err != nil {
			s.log.Warn("booking ref save failed", "lead_id", lead.ID.String(), "error", err.Error())
		}
	}
	return lead, nil
}
