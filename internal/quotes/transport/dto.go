// Package transport defines the request and response DTOs for the
// treatment-note and quote endpoints.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Doctor note requests
// =============================================================================

type CreateNoteRequest struct {
	LeadID  string `json:"leadId" validate:"required,uuid"`
	Title   string `json:"title" validate:"required,min=2,max=200"`
	Content string `json:"content" validate:"required,min=2,max=10000"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=2,max=200"`
	Content *string `json:"content" validate:"omitempty,min=2,max=10000"`
}

// =============================================================================
// Quote requests
// =============================================================================

type QuoteItemRequest struct {
	Description    string `json:"description" validate:"required,min=2,max=500"`
	Quantity       string `json:"quantity" validate:"required,max=50"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"required,min=0"`
}

type CreateQuoteRequest struct {
	LeadID        string             `json:"leadId" validate:"required,uuid"`
	DoctorNoteID  string             `json:"doctorNoteId" validate:"required,uuid"`
	Currency      string             `json:"currency" validate:"omitempty,oneof=EUR USD GBP TRY"`
	DiscountType  string             `json:"discountType" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue int64              `json:"discountValue" validate:"omitempty,min=0"`
	Items         []QuoteItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type UpdateQuoteRequest struct {
	Currency      *string            `json:"currency" validate:"omitempty,oneof=EUR USD GBP TRY"`
	DiscountType  *string            `json:"discountType" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue *int64             `json:"discountValue" validate:"omitempty,min=0"`
	Items         []QuoteItemRequest `json:"items" validate:"omitempty,min=1,max=50,dive"`
}

// =============================================================================
// Calculator types
// =============================================================================

type QuoteCalculationRequest struct {
	DiscountType  string             `json:"discountType"`
	DiscountValue int64              `json:"discountValue"`
	Items         []QuoteItemRequest `json:"items"`
}

type CalculatedLineItem struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

type QuoteCalculationResponse struct {
	Lines               []CalculatedLineItem `json:"lines"`
	SubtotalCents       int64                `json:"subtotalCents"`
	DiscountAmountCents int64                `json:"discountAmountCents"`
	TotalCents          int64                `json:"totalCents"`
}

// =============================================================================
// Responses
// =============================================================================

type NoteResponse struct {
	ID         uuid.UUID  `json:"id"`
	LeadID     uuid.UUID  `json:"leadId"`
	DoctorID   uuid.UUID  `json:"doctorId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type QuoteItemResponse struct {
	ID             uuid.UUID `json:"id"`
	Description    string    `json:"description"`
	Quantity       string    `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	LineTotalCents int64     `json:"lineTotalCents"`
	Position       int       `json:"position"`
}

type QuoteResponse struct {
	ID                  uuid.UUID           `json:"id"`
	LeadID              uuid.UUID           `json:"leadId"`
	DoctorNoteID        uuid.UUID           `json:"doctorNoteId"`
	Status              string              `json:"status"`
	Currency            string              `json:"currency"`
	DiscountType        string              `json:"discountType"`
	DiscountValue       int64               `json:"discountValue"`
	SubtotalCents       int64               `json:"subtotalCents"`
	DiscountAmountCents int64               `json:"discountAmountCents"`
	TotalCents          int64               `json:"totalCents"`
	Items               []QuoteItemResponse `json:"items"`
	SentAt              *time.Time          `json:"sentAt,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}
