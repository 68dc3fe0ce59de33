// Package transport defines the request and response shapes for the
// leads HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=200"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Treatment string `json:"treatment" validate:"omitempty,max=200"`
	Message   string `json:"message" validate:"omitempty,max=5000"`
	Source    string `json:"source" validate:"omitempty,max=100"`
}

type UpdateLeadRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=2,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Treatment *string `json:"treatment" validate:"omitempty,max=200"`
	Message   *string `json:"message" validate:"omitempty,max=5000"`
	Snapshot  *string `json:"snapshot" validate:"omitempty,max=10000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted quoted booked closed lost"`
}

type AssignDoctorRequest struct {
	DoctorID *uuid.UUID `json:"doctorId"`
}

type ReviewStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending needs_info reviewed"`
}

type LogContactRequest struct {
	Channel string `json:"channel" validate:"required,oneof=phone whatsapp email sms"`
	Note    string `json:"note" validate:"omitempty,max=2000"`
}

type AddNoteRequest struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type SubmitCardRequest struct {
	CaseID      string         `json:"caseId" validate:"required"`
	PortalToken string         `json:"portalToken" validate:"required"`
	CardID      string         `json:"cardId" validate:"required"`
	Answers     map[string]any `json:"answers"`
}

type PortalSessionRequest struct {
	CaseID      string `json:"caseId" validate:"required"`
	PortalToken string `json:"portalToken" validate:"required"`
}

type UploadDocumentRequest struct {
	CaseID      string `json:"caseId" validate:"required"`
	PortalToken string `json:"portalToken" validate:"required"`
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	FileSize    int64  `json:"fileSize" validate:"required,min=1"`
}

// LeadResponse is the staff-facing view of a lead.
type LeadResponse struct {
	ID                 uuid.UUID      `json:"id"`
	CaseID             string         `json:"caseId"`
	Name               *string        `json:"name"`
	Email              *string        `json:"email"`
	Phone              *string        `json:"phone"`
	Treatment          *string        `json:"treatment"`
	Message            *string        `json:"message"`
	Snapshot           *string        `json:"snapshot,omitempty"`
	Status             string         `json:"status"`
	Source             *string        `json:"source,omitempty"`
	BookingRef         *string        `json:"bookingRef,omitempty"`
	DoctorID           *uuid.UUID     `json:"doctorId,omitempty"`
	DoctorReviewStatus *string        `json:"doctorReviewStatus,omitempty"`
	DoctorAssignedAt   *time.Time     `json:"doctorAssignedAt,omitempty"`
	EmailVerifiedAt    *time.Time     `json:"emailVerifiedAt,omitempty"`
	PortalStatus       *string        `json:"portalStatus,omitempty"`
	AIRiskScore        *int           `json:"aiRiskScore,omitempty"`
	AISummary          *string        `json:"aiSummary,omitempty"`
	AILastAnalyzedAt   *time.Time     `json:"aiLastAnalyzedAt,omitempty"`
	LastContactedAt    *time.Time     `json:"lastContactedAt,omitempty"`
	Meta               map[string]any `json:"meta,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

type TimelineEventResponse struct {
	ID         uuid.UUID      `json:"id"`
	EventType  string         `json:"eventType"`
	ActorType  string         `json:"actorType"`
	Note       *string        `json:"note,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type NoteResponse struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type LeadDetailResponse struct {
	Lead     LeadResponse            `json:"lead"`
	Timeline []TimelineEventResponse `json:"timeline"`
	Notes    []NoteResponse          `json:"notes"`
}

type UnifiedPatientResponse struct {
	Canonical  LeadResponse   `json:"canonical"`
	Duplicates []LeadResponse `json:"duplicates"`
}
