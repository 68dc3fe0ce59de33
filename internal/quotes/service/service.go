// Package service implements the treatment-note and quote workflows.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"smiledesign_backend/internal/events"
	leadsrepo "smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/quotes/repository"
	"smiledesign_backend/internal/quotes/transport"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
	"smiledesign_backend/platform/sanitize"
)

const defaultCurrency = "EUR"

type Service struct {
	repo  repository.QuotesRepository
	leads leadsrepo.LeadsRepository
	bus   events.Bus
	log   *logger.Logger
}

func New(repo repository.QuotesRepository, leads leadsrepo.LeadsRepository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, leads: leads, bus: bus, log: log}
}

// =============================================================================
// Doctor notes
// =============================================================================

type CreateNoteParams struct {
	LeadID  uuid.UUID
	Title   string
	Content string
}

// CreateNote starts a draft treatment note. Only the doctor the lead is
// assigned to may write notes for it.
func (s *Service) CreateNote(ctx context.Context, doctorID uuid.UUID, params CreateNoteParams) (repository.DoctorNote, error) {
	if err := s.checkLeadAssignment(ctx, params.LeadID, doctorID); err != nil {
		return repository.DoctorNote{}, err
	}

	note, err := s.repo.CreateNote(ctx, repository.CreateNoteParams{
		LeadID:   params.LeadID,
		DoctorID: doctorID,
		Title:    sanitize.Text(params.Title),
		Content:  sanitize.Text(params.Content),
	})
	if err != nil {
		return repository.DoctorNote{}, apperr.Wrap(apperr.KindInternal, "create note", err).WithOp("quotes.CreateNote")
	}
	return note, nil
}

func (s *Service) UpdateNote(ctx context.Context, doctorID, noteID uuid.UUID, params transport.UpdateNoteRequest) (repository.DoctorNote, error) {
	if err := s.checkNoteOwnership(ctx, noteID, doctorID); err != nil {
		return repository.DoctorNote{}, err
	}

	note, err := s.repo.UpdateNote(ctx, noteID, repository.UpdateNoteParams{
		Title:   sanitize.TextPtr(params.Title),
		Content: sanitize.TextPtr(params.Content),
	})
	switch {
	case errors.Is(err, repository.ErrImmutable):
		return repository.DoctorNote{}, apperr.Conflict("approved notes are immutable").WithOp("quotes.UpdateNote")
	case errors.Is(err, repository.ErrNotFound):
		return repository.DoctorNote{}, apperr.NotFound("note not found").WithOp("quotes.UpdateNote")
	case err != nil:
		return repository.DoctorNote{}, apperr.Wrap(apperr.KindInternal, "update note", err).WithOp("quotes.UpdateNote")
	}
	return note, nil
}

// ApproveNote freezes a note. Approved notes cannot be edited again and
// become eligible for quote generation.
func (s *Service) ApproveNote(ctx context.Context, doctorID, noteID uuid.UUID) (repository.DoctorNote, error) {
	if err := s.checkNoteOwnership(ctx, noteID, doctorID); err != nil {
		return repository.DoctorNote{}, err
	}

	note, err := s.repo.ApproveNote(ctx, noteID)
	switch {
	case errors.Is(err, repository.ErrImmutable):
		return repository.DoctorNote{}, apperr.Conflict("note is already approved").WithOp("quotes.ApproveNote")
	case errors.Is(err, repository.ErrNotFound):
		return repository.DoctorNote{}, apperr.NotFound("note not found").WithOp("quotes.ApproveNote")
	case err != nil:
		return repository.DoctorNote{}, apperr.Wrap(apperr.KindInternal, "approve note", err).WithOp("quotes.ApproveNote")
	}

	s.bus.Publish(ctx, events.DoctorNoteApproved{
		BaseEvent: events.NewBaseEvent(),
		NoteID:    note.ID,
		LeadID:    note.LeadID,
		DoctorID:  note.DoctorID,
	})
	return note, nil
}

func (s *Service) ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.DoctorNote, error) {
	notes, err := s.repo.ListNotesByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list notes", err).WithOp("quotes.ListNotes")
	}
	return notes, nil
}

func (s *Service) checkLeadAssignment(ctx context.Context, leadID, doctorID uuid.UUID) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "load lead", err)
	}
	if lead.Status == leadsrepo.StatusMerged {
		return apperr.Conflict("lead has been merged into another record")
	}
	if lead.DoctorID == nil || *lead.DoctorID != doctorID {
		return apperr.Forbidden("lead is not assigned to you")
	}
	return nil
}

func (s *Service) checkNoteOwnership(ctx context.Context, noteID, doctorID uuid.UUID) error {
	note, err := s.repo.GetNote(ctx, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("note not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "load note", err)
	}
	if note.DoctorID != doctorID {
		return apperr.Forbidden("note belongs to another doctor")
	}
	return nil
}

// =============================================================================
// Quotes
// =============================================================================

// QuoteDetail bundles a quote with its materialized items.
type QuoteDetail struct {
	Quote repository.Quote
	Items []repository.QuoteItem
}

type CreateQuoteParams struct {
	LeadID        uuid.UUID
	DoctorNoteID  uuid.UUID
	Currency      string
	DiscountType  string
	DiscountValue int64
	Items         []transport.QuoteItemRequest
}

// CreateQuote drafts a quote from an approved treatment note. Totals and
// item line totals are computed here and stored with the quote.
func (s *Service) CreateQuote(ctx context.Context, params CreateQuoteParams) (QuoteDetail, error) {
	note, err := s.repo.GetNote(ctx, params.DoctorNoteID)
	if errors.Is(err, repository.ErrNotFound) {
		return QuoteDetail{}, apperr.NotFound("note not found").WithOp("quotes.CreateQuote")
	}
	if err != nil {
		return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "load note", err).WithOp("quotes.CreateQuote")
	}
	if note.Status != repository.NoteStatusApproved {
		return QuoteDetail{}, apperr.Validation("quote requires an approved note").WithOp("quotes.CreateQuote")
	}
	if note.LeadID != params.LeadID {
		return QuoteDetail{}, apperr.Validation("note belongs to a different lead").WithOp("quotes.CreateQuote")
	}

	currency := params.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	discountType := params.DiscountType
	if discountType == "" {
		discountType = "percentage"
	}

	calc := CalculateQuote(transport.QuoteCalculationRequest{
		DiscountType:  discountType,
		DiscountValue: params.DiscountValue,
		Items:         params.Items,
	})

	quote, err := s.repo.CreateQuote(ctx, repository.CreateQuoteParams{
		LeadID:              params.LeadID,
		DoctorNoteID:        params.DoctorNoteID,
		Currency:            currency,
		DiscountType:        discountType,
		DiscountValue:       params.DiscountValue,
		SubtotalCents:       calc.SubtotalCents,
		DiscountAmountCents: calc.DiscountAmountCents,
		TotalCents:          calc.TotalCents,
		Items:               itemParams(calc.Lines),
	})
	if err != nil {
		return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "create quote", err).WithOp("quotes.CreateQuote")
	}
	return s.loadDetail(ctx, quote)
}

func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (QuoteDetail, error) {
	quote, err := s.repo.GetQuote(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return QuoteDetail{}, apperr.NotFound("quote not found").WithOp("quotes.GetQuote")
	}
	if err != nil {
		return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "load quote", err).WithOp("quotes.GetQuote")
	}
	return s.loadDetail(ctx, quote)
}

func (s *Service) ListQuotes(ctx context.Context, leadID uuid.UUID) ([]repository.Quote, error) {
	quotes, err := s.repo.ListQuotesByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list quotes", err).WithOp("quotes.ListQuotes")
	}
	return quotes, nil
}

// UpdateQuote re-prices a draft. When the request omits items, the stored
// items are kept and totals are recomputed against the new discount.
func (s *Service) UpdateQuote(ctx context.Context, id uuid.UUID, req transport.UpdateQuoteRequest) (QuoteDetail, error) {
	quote, err := s.repo.GetQuote(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return QuoteDetail{}, apperr.NotFound("quote not found").WithOp("quotes.UpdateQuote")
	}
	if err != nil {
		return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "load quote", err).WithOp("quotes.UpdateQuote")
	}

	items := req.Items
	if items == nil {
		existing, err := s.repo.ListQuoteItems(ctx, id)
		if err != nil {
			return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "load quote items", err).WithOp("quotes.UpdateQuote")
		}
		for _, item := range existing {
			items = append(items, transport.QuoteItemRequest{
				Description:    item.Description,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			})
		}
	}

	discountType := quote.DiscountType
	if req.DiscountType != nil {
		discountType = *req.DiscountType
	}
	discountValue := quote.DiscountValue
	if req.DiscountValue != nil {
		discountValue = *req.DiscountValue
	}

	calc := CalculateQuote(transport.QuoteCalculationRequest{
		DiscountType:  discountType,
		DiscountValue: discountValue,
		Items:         items,
	})

	var replaceItems []repository.QuoteItemParams
	if req.Items != nil {
		replaceItems = itemParams(calc.Lines)
	}

	updated, err := s.repo.UpdateQuote(ctx, id, repository.UpdateQuoteParams{
		Currency:            req.Currency,
		DiscountType:        req.DiscountType,
		DiscountValue:       req.DiscountValue,
		SubtotalCents:       calc.SubtotalCents,
		DiscountAmountCents: calc.DiscountAmountCents,
		TotalCents:          calc.TotalCents,
		Items:               replaceItems,
	})
	switch {
	case errors.Is(err, repository.ErrImmutable):
		return QuoteDetail{}, apperr.Conflict("sent quotes are immutable").WithOp("quotes.UpdateQuote")
	case errors.Is(err, repository.ErrNotFound):
		return QuoteDetail{}, apperr.NotFound("quote not found").WithOp("quotes.UpdateQuote")
	case err != nil:
		return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "update quote", err).WithOp("quotes.UpdateQuote")
	}
	return s.loadDetail(ctx, updated)
}

// SendQuote marks a draft quote as sent to the patient.
func (s *Service) SendQuote(ctx context.Context, id uuid.UUID) (QuoteDetail, error) {
	quote, err := s.repo.MarkQuoteSent(ctx, id)
	switch {
	case errors.Is(err, repository.ErrImmutable):
		return QuoteDetail{}, apperr.Conflict("quote has already been sent").WithOp("quotes.SendQuote")
	case errors.Is(err, repository.ErrNotFound):
		return QuoteDetail{}, apperr.NotFound("quote not found").WithOp("quotes.SendQuote")
	case err != nil:
		return QuoteDetail{}, apperr.Wrap(apperr.KindInternal, "send quote", err).WithOp("quotes.SendQuote")
	}

	s.bus.Publish(ctx, events.QuoteSent{
		BaseEvent:  events.NewBaseEvent(),
		QuoteID:    quote.ID,
		LeadID:     quote.LeadID,
		TotalCents: quote.TotalCents,
	})
	return s.loadDetail(ctx, quote)
}

func (s *Service) loadDetail(ctx context.Context, quote repository.Quote) (QuoteDetail, error) {
	items, err := s.repo.ListQuoteItems(ctx, quote.ID)
	if err != nil {
		s.log.Warn("quote items load failed", "quote_id", quote.ID.String(), "error", err.Error())
		items = []repository.QuoteItem{}
	}
	return QuoteDetail{Quote: quote, Items: items}, nil
}

func itemParams(lines []transport.CalculatedLineItem) []repository.QuoteItemParams {
	out := make([]repository.QuoteItemParams, 0, len(lines))
	for _, line := range lines {
		out = append(out, repository.QuoteItemParams{
			Description:    sanitize.Text(line.Description),
			Quantity:       sanitize.Text(line.Quantity),
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return out
}
