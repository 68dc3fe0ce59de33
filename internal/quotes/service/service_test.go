package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"smiledesign_backend/internal/events"
	leadsrepo "smiledesign_backend/internal/leads/repository"
	"smiledesign_backend/internal/quotes/repository"
	"smiledesign_backend/internal/quotes/transport"
	"smiledesign_backend/platform/apperr"
	"smiledesign_backend/platform/logger"
)

type memRepo struct {
	repository.QuotesRepository

	notes  map[uuid.UUID]repository.DoctorNote
	quotes map[uuid.UUID]repository.Quote
	items  map[uuid.UUID][]repository.QuoteItem
}

func newMemRepo() *memRepo {
	return &memRepo{
		notes:  make(map[uuid.UUID]repository.DoctorNote),
		quotes: make(map[uuid.UUID]repository.Quote),
		items:  make(map[uuid.UUID][]repository.QuoteItem),
	}
}

func (m *memRepo) CreateNote(_ context.Context, params repository.CreateNoteParams) (repository.DoctorNote, error) {
	note := repository.DoctorNote{
		ID:       uuid.New(),
		LeadID:   params.LeadID,
		DoctorID: params.DoctorID,
		Title:    params.Title,
		Content:  params.Content,
		Status:   repository.NoteStatusDraft,
	}
	m.notes[note.ID] = note
	return note, nil
}

func (m *memRepo) GetNote(_ context.Context, id uuid.UUID) (repository.DoctorNote, error) {
	note, ok := m.notes[id]
	if !ok {
		return repository.DoctorNote{}, repository.ErrNotFound
	}
	return note, nil
}

func (m *memRepo) UpdateNote(_ context.Context, id uuid.UUID, params repository.UpdateNoteParams) (repository.DoctorNote, error) {
	note, ok := m.notes[id]
	if !ok {
		return repository.DoctorNote{}, repository.ErrNotFound
	}
	if note.Status != repository.NoteStatusDraft {
		return repository.DoctorNote{}, repository.ErrImmutable
	}
	if params.Title != nil {
		note.Title = *params.Title
	}
	if params.Content != nil {
		note.Content = *params.Content
	}
	m.notes[id] = note
	return note, nil
}

func (m *memRepo) ApproveNote(_ context.Context, id uuid.UUID) (repository.DoctorNote, error) {
	note, ok := m.notes[id]
	if !ok {
		return repository.DoctorNote{}, repository.ErrNotFound
	}
	if note.Status != repository.NoteStatusDraft {
		return repository.DoctorNote{}, repository.ErrImmutable
	}
	now := time.Now()
	note.Status = repository.NoteStatusApproved
	note.ApprovedAt = &now
	m.notes[id] = note
	return note, nil
}

func (m *memRepo) CreateQuote(_ context.Context, params repository.CreateQuoteParams) (repository.Quote, error) {
	quote := repository.Quote{
		ID:                  uuid.New(),
		LeadID:              params.LeadID,
		DoctorNoteID:        params.DoctorNoteID,
		Status:              repository.QuoteStatusDraft,
		Currency:            params.Currency,
		DiscountType:        params.DiscountType,
		DiscountValue:       params.DiscountValue,
		SubtotalCents:       params.SubtotalCents,
		DiscountAmountCents: params.DiscountAmountCents,
		TotalCents:          params.TotalCents,
	}
	m.quotes[quote.ID] = quote
	for i, item := range params.Items {
		m.items[quote.ID] = append(m.items[quote.ID], repository.QuoteItem{
			ID:             uuid.New(),
			QuoteID:        quote.ID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
			Position:       i,
		})
	}
	return quote, nil
}

func (m *memRepo) GetQuote(_ context.Context, id uuid.UUID) (repository.Quote, error) {
	quote, ok := m.quotes[id]
	if !ok {
		return repository.Quote{}, repository.ErrNotFound
	}
	return quote, nil
}

func (m *memRepo) ListQuoteItems(_ context.Context, quoteID uuid.UUID) ([]repository.QuoteItem, error) {
	return m.items[quoteID], nil
}

func (m *memRepo) MarkQuoteSent(_ context.Context, id uuid.UUID) (repository.Quote, error) {
	quote, ok := m.quotes[id]
	if !ok {
		return repository.Quote{}, repository.ErrNotFound
	}
	if quote.Status != repository.QuoteStatusDraft {
		return repository.Quote{}, repository.ErrImmutable
	}
	now := time.Now()
	quote.Status = repository.QuoteStatusSent
	quote.SentAt = &now
	m.quotes[id] = quote
	return quote, nil
}

type fakeLeads struct {
	leadsrepo.LeadsRepository
	leads map[uuid.UUID]leadsrepo.Lead
}

func (f *fakeLeads) GetByID(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return lead, nil
}

func newTestService(t *testing.T) (*Service, *memRepo, uuid.UUID, uuid.UUID) {
	t.Helper()
	repo := newMemRepo()
	doctorID := uuid.New()
	leadID := uuid.New()
	leads := &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{
		leadID: {ID: leadID, Status: leadsrepo.StatusContacted, DoctorID: &doctorID},
	}}
	log := logger.New("test")
	svc := New(repo, leads, events.NewInMemoryBus(log), log)
	return svc, repo, doctorID, leadID
}

func TestCreateNoteRequiresAssignment(t *testing.T) {
	svc, _, _, leadID := newTestService(t)
	otherDoctor := uuid.New()

	_, err := svc.CreateNote(context.Background(), otherDoctor, CreateNoteParams{
		LeadID: leadID, Title: "Plan", Content: "6 crowns upper",
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestApprovedNoteIsImmutable(t *testing.T) {
	svc, _, doctorID, leadID := newTestService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, doctorID, CreateNoteParams{
		LeadID: leadID, Title: "Plan", Content: "6 crowns upper",
	})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	approved, err := svc.ApproveNote(ctx, doctorID, note.ID)
	if err != nil {
		t.Fatalf("ApproveNote: %v", err)
	}
	if approved.Status != repository.NoteStatusApproved || approved.ApprovedAt == nil {
		t.Fatalf("note not approved: %+v", approved)
	}

	newTitle := "Revised plan"
	_, err = svc.UpdateNote(ctx, doctorID, note.ID, transport.UpdateNoteRequest{Title: &newTitle})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict editing approved note, got %v", err)
	}

	_, err = svc.ApproveNote(ctx, doctorID, note.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict re-approving note, got %v", err)
	}
}

func TestNoteOwnershipEnforced(t *testing.T) {
	svc, _, doctorID, leadID := newTestService(t)
	ctx := context.Background()

	note, _ := svc.CreateNote(ctx, doctorID, CreateNoteParams{
		LeadID: leadID, Title: "Plan", Content: "Veneers",
	})

	_, err := svc.ApproveNote(ctx, uuid.New(), note.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for foreign doctor, got %v", err)
	}
}

func TestCreateQuoteRequiresApprovedNote(t *testing.T) {
	svc, _, doctorID, leadID := newTestService(t)
	ctx := context.Background()

	note, _ := svc.CreateNote(ctx, doctorID, CreateNoteParams{
		LeadID: leadID, Title: "Plan", Content: "Implants",
	})

	_, err := svc.CreateQuote(ctx, CreateQuoteParams{
		LeadID:       leadID,
		DoctorNoteID: note.ID,
		Items:        []transport.QuoteItemRequest{{Description: "Implant", Quantity: "2", UnitPriceCents: 60000}},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for draft note, got %v", err)
	}
}

func TestQuoteLifecycle(t *testing.T) {
	svc, _, doctorID, leadID := newTestService(t)
	ctx := context.Background()

	note, _ := svc.CreateNote(ctx, doctorID, CreateNoteParams{
		LeadID: leadID, Title: "Plan", Content: "Implants",
	})
	if _, err := svc.ApproveNote(ctx, doctorID, note.ID); err != nil {
		t.Fatalf("ApproveNote: %v", err)
	}

	detail, err := svc.CreateQuote(ctx, CreateQuoteParams{
		LeadID:        leadID,
		DoctorNoteID:  note.ID,
		DiscountType:  "percentage",
		DiscountValue: 10,
		Items: []transport.QuoteItemRequest{
			{Description: "Implant", Quantity: "2 x", UnitPriceCents: 60000},
			{Description: "Crown", Quantity: "2 x", UnitPriceCents: 20000},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if detail.Quote.SubtotalCents != 160000 {
		t.Fatalf("subtotal = %d, want 160000", detail.Quote.SubtotalCents)
	}
	if detail.Quote.DiscountAmountCents != 16000 {
		t.Fatalf("discount = %d, want 16000", detail.Quote.DiscountAmountCents)
	}
	if detail.Quote.TotalCents != 144000 {
		t.Fatalf("total = %d, want 144000", detail.Quote.TotalCents)
	}
	if len(detail.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(detail.Items))
	}
	if detail.Quote.Currency != "EUR" {
		t.Fatalf("currency default = %q, want EUR", detail.Quote.Currency)
	}

	sent, err := svc.SendQuote(ctx, detail.Quote.ID)
	if err != nil {
		t.Fatalf("SendQuote: %v", err)
	}
	if sent.Quote.Status != repository.QuoteStatusSent || sent.Quote.SentAt == nil {
		t.Fatalf("quote not sent: %+v", sent.Quote)
	}

	_, err = svc.SendQuote(ctx, detail.Quote.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict re-sending quote, got %v", err)
	}
}

func TestCreateQuoteRejectsForeignNote(t *testing.T) {
	svc, _, doctorID, leadID := newTestService(t)
	ctx := context.Background()

	note, _ := svc.CreateNote(ctx, doctorID, CreateNoteParams{
		LeadID: leadID, Title: "Plan", Content: "Implants",
	})
	if _, err := svc.ApproveNote(ctx, doctorID, note.ID); err != nil {
		t.Fatalf("ApproveNote: %v", err)
	}

	_, err := svc.CreateQuote(ctx, CreateQuoteParams{
		LeadID:       uuid.New(),
		DoctorNoteID: note.ID,
		Items:        []transport.QuoteItemRequest{{Description: "Implant", Quantity: "1", UnitPriceCents: 60000}},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for mismatched lead, got %v", err)
	}
}
