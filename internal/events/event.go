// Package events provides the domain event bus and event definitions for
// decoupled communication between modules.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the base interface all domain events implement.
type Event interface {
	// EventName returns a unique identifier for the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a base event stamped with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a specific type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts ordinary functions to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus is the interface for publishing and subscribing to domain events.
type Bus interface {
	// Publish sends an event to all registered handlers asynchronously.
	Publish(ctx context.Context, event Event)
	// PublishSync sends an event and waits for all handlers to complete.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe registers a handler for the named event type.
	Subscribe(eventName string, handler Handler)
}

// =============================================================================
// Lead lifecycle events
// =============================================================================

// LeadCreated is published when a new intake submission creates a lead.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	CaseID string    `json:"caseId"`
	Email  string    `json:"email,omitempty"`
	Source string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadVerified is published after a successful email verification, once the
// canonical lead for the address has been resolved.
type LeadVerified struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	CanonicalLeadID uuid.UUID `json:"canonicalLeadId"`
	Email           string    `json:"email"`
	Merged          bool      `json:"merged"`
}

func (e LeadVerified) EventName() string { return "leads.lead.verified" }

// LeadMerged is published when a duplicate lead is soft-merged into the
// canonical record for its email address.
type LeadMerged struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	MergedInto uuid.UUID `json:"mergedInto"`
	Reason     string    `json:"reason"`
}

func (e LeadMerged) EventName() string { return "leads.lead.merged" }

// LeadAssigned is published when a lead is assigned to a doctor.
type LeadAssigned struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	PreviousDoctor *uuid.UUID `json:"previousDoctor,omitempty"`
	NewDoctor      *uuid.UUID `json:"newDoctor,omitempty"`
	AssignedByID   uuid.UUID  `json:"assignedById"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadRiskScored is published when the risk scorer persists a fresh analysis.
type LeadRiskScored struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	RiskScore int       `json:"riskScore"`
}

func (e LeadRiskScored) EventName() string { return "leads.lead.risk_scored" }

// BookingEventReceived is published when the booking provider webhook
// appends a timeline event for a lead.
type BookingEventReceived struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	EventType string    `json:"eventType"`
}

func (e BookingEventReceived) EventName() string { return "leads.booking.received" }

// OnboardingCardCompleted is published when a patient submits answers
// for an onboarding card.
type OnboardingCardCompleted struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	CardID          string    `json:"cardId"`
	ProgressPercent int       `json:"progressPercent"`
}

func (e OnboardingCardCompleted) EventName() string { return "leads.onboarding.card_completed" }

// =============================================================================
// Quote events
// =============================================================================

// DoctorNoteApproved is published when a doctor approves a treatment note,
// making it eligible for quote generation.
type DoctorNoteApproved struct {
	BaseEvent
	NoteID   uuid.UUID `json:"noteId"`
	LeadID   uuid.UUID `json:"leadId"`
	DoctorID uuid.UUID `json:"doctorId"`
}

func (e DoctorNoteApproved) EventName() string { return "quotes.note.approved" }

// QuoteSent is published when staff send a quote to the patient.
type QuoteSent struct {
	BaseEvent
	QuoteID    uuid.UUID `json:"quoteId"`
	LeadID     uuid.UUID `json:"leadId"`
	TotalCents int64     `json:"totalCents"`
}

func (e QuoteSent) EventName() string { return "quotes.quote.sent" }
