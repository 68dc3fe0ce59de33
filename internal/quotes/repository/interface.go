package repository

import (
	"context"

	"github.com/google/uuid"
)

// QuotesRepository is the persistence contract the service layer depends
// on. Tests substitute fakes for it.
type QuotesRepository interface {
	CreateNote(ctx context.Context, params CreateNoteParams) (DoctorNote, error)
	GetNote(ctx context.Context, id uuid.UUID) (DoctorNote, error)
	ListNotesByLead(ctx context.Context, leadID uuid.UUID) ([]DoctorNote, error)
	UpdateNote(ctx context.Context, id uuid.UUID, params UpdateNoteParams) (DoctorNote, error)
	ApproveNote(ctx context.Context, id uuid.UUID) (DoctorNote, error)

	CreateQuote(ctx context.Context, params CreateQuoteParams) (Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (Quote, error)
	ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]QuoteItem, error)
	ListQuotesByLead(ctx context.Context, leadID uuid.UUID) ([]Quote, error)
	UpdateQuote(ctx context.Context, id uuid.UUID, params UpdateQuoteParams) (Quote, error)
	MarkQuoteSent(ctx context.Context, id uuid.UUID) (Quote, error)
}

var _ QuotesRepository = (*Repository)(nil)
