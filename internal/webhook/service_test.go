package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/events"
	"smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

type fakeLeadsRepo struct {
	repository.LeadsRepository

	byBookingRef map[string]repository.Lead
	byEmail      map[string][]repository.Lead

	appended    []repository.AppendTimelineEventParams
	statusSet   map[uuid.UUID]string
	bookingRefs map[uuid.UUID]string
}

func newFakeLeadsRepo() *fakeLeadsRepo {
	return &fakeLeadsRepo{
		byBookingRef: make(map[string]repository.Lead),
		byEmail:      make(map[string][]repository.Lead),
		statusSet:    make(map[uuid.UUID]string),
		bookingRefs:  make(map[uuid.UUID]string),
	}
}

func (f *fakeLeadsRepo) GetByBookingRef(_ context.Context, ref string) (repository.Lead, error) {
	lead, ok := f.byBookingRef[ref]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeLeadsRepo) ListActiveByEmail(_ context.Context, email string) ([]repository.Lead, error) {
	return f.byEmail[email], nil
}

func (f *fakeLeadsRepo) AppendTimelineEvent(_ context.Context, params repository.AppendTimelineEventParams) (repository.TimelineEvent, error) {
	f.appended = append(f.appended, params)
	return repository.TimelineEvent{ID: uuid.New(), LeadID: params.LeadID, EventType: params.EventType}, nil
}

func (f *fakeLeadsRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.statusSet[id] = status
	return nil
}

func (f *fakeLeadsRepo) SetBookingRef(_ context.Context, id uuid.UUID, ref string) error {
	f.bookingRefs[id] = ref
	return nil
}

func newTestService(repo repository.LeadsRepository) *Service {
	log := logger.New("test")
	return NewService(repo, events.NewInMemoryBus(log), log)
}

func TestHandleBookingEventRejectsUnknownTrigger(t *testing.T) {
	svc := newTestService(newFakeLeadsRepo())

	err := svc.HandleBookingEvent(context.Background(), BookingPayload{
		TriggerEvent: "MEETING_ENDED",
		BookingUID:   "bk_1",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleBookingEventMatchesByBookingRef(t *testing.T) {
	repo := newFakeLeadsRepo()
	lead := repository.Lead{ID: uuid.New(), Status: repository.StatusBooked}
	repo.byBookingRef["bk_1"] = lead
	svc := newTestService(repo)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	err := svc.HandleBookingEvent(context.Background(), BookingPayload{
		TriggerEvent: "BOOKING_RESCHEDULED",
		BookingUID:   "bk_1",
		StartTime:    &start,
	})
	if err != nil {
		t.Fatalf("HandleBookingEvent: %v", err)
	}

	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(repo.appended))
	}
	got := repo.appended[0]
	if got.LeadID != lead.ID {
		t.Fatalf("event went to lead %s, want %s", got.LeadID, lead.ID)
	}
	if got.EventType != repository.EventBookingRescheduled {
		t.Fatalf("event type = %q", got.EventType)
	}
	if got.ActorType != repository.ActorSystem {
		t.Fatalf("actor type = %q", got.ActorType)
	}
	if got.Payload["start_time"] != "2026-03-10T09:00:00Z" {
		t.Fatalf("start_time payload = %v", got.Payload["start_time"])
	}
}

func TestHandleBookingEventFallsBackToEmailAndSavesRef(t *testing.T) {
	repo := newFakeLeadsRepo()
	lead := repository.Lead{ID: uuid.New(), Status: repository.StatusNew}
	repo.byEmail["jane@example.com"] = []repository.Lead{lead}
	svc := newTestService(repo)

	err := svc.HandleBookingEvent(context.Background(), BookingPayload{
		TriggerEvent: "BOOKING_CREATED",
		BookingUID:   "bk_9",
		Email:        "  Jane@Example.com ",
	})
	if err != nil {
		t.Fatalf("HandleBookingEvent: %v", err)
	}

	if repo.bookingRefs[lead.ID] != "bk_9" {
		t.Fatalf("booking ref not remembered: %q", repo.bookingRefs[lead.ID])
	}
	if repo.statusSet[lead.ID] != repository.StatusBooked {
		t.Fatalf("new lead should advance to booked, got %q", repo.statusSet[lead.ID])
	}
}

func TestHandleBookingEventDropsUnmatched(t *testing.T) {
	repo := newFakeLeadsRepo()
	svc := newTestService(repo)

	err := svc.HandleBookingEvent(context.Background(), BookingPayload{
		TriggerEvent: "BOOKING_CANCELLED",
		BookingUID:   "bk_missing",
		Email:        "nobody@example.com",
	})
	if err != nil {
		t.Fatalf("unmatched booking event should be dropped, got %v", err)
	}
	if len(repo.appended) != 0 {
		t.Fatalf("no timeline event expected, got %d", len(repo.appended))
	}
}

func TestHandleBookingEventDoesNotRegressStatus(t *testing.T) {
	repo := newFakeLeadsRepo()
	lead := repository.Lead{ID: uuid.New(), Status: repository.StatusQuoted}
	repo.byBookingRef["bk_2"] = lead
	svc := newTestService(repo)

	err := svc.HandleBookingEvent(context.Background(), BookingPayload{
		TriggerEvent: "BOOKING_CREATED",
		BookingUID:   "bk_2",
	})
	if err != nil {
		t.Fatalf("HandleBookingEvent: %v", err)
	}
	if _, ok := repo.statusSet[lead.ID]; ok {
		t.Fatalf("quoted lead status should be untouched, got %q", repo.statusSet[lead.ID])
	}
}
