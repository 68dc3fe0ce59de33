// Package handler exposes the treatment-note and quote HTTP endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smiledesign_backend/internal/quotes/repository"
	"smiledesign_backend/internal/quotes/service"
	"smiledesign_backend/internal/quotes/transport"
	"smiledesign_backend/platform/httpkit"
	"smiledesign_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// =============================================================================
// Doctor notes (doctor role)
// =============================================================================

func (h *Handler) HandleCreateNote(c *gin.Context) {
	var req transport.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	leadID, _ := uuid.Parse(req.LeadID)

	note, err := h.svc.CreateNote(c.Request.Context(), identity.UserID(), service.CreateNoteParams{
		LeadID:  leadID,
		Title:   req.Title,
		Content: req.Content,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toNoteResponse(note))
}

func (h *Handler) HandleUpdateNote(c *gin.Context) {
	noteID, ok := parseIDParam(c, "noteId")
	if !ok {
		return
	}

	var req transport.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	note, err := h.svc.UpdateNote(c.Request.Context(), identity.UserID(), noteID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toNoteResponse(note))
}

func (h *Handler) HandleApproveNote(c *gin.Context) {
	noteID, ok := parseIDParam(c, "noteId")
	if !ok {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	note, err := h.svc.ApproveNote(c.Request.Context(), identity.UserID(), noteID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toNoteResponse(note))
}

func (h *Handler) HandleListNotes(c *gin.Context) {
	leadID, ok := parseQueryLeadID(c)
	if !ok {
		return
	}

	notes, err := h.svc.ListNotes(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.NoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, toNoteResponse(note))
	}
	httpkit.OK(c, out)
}

// =============================================================================
// Quotes (staff)
// =============================================================================

func (h *Handler) HandleCreateQuote(c *gin.Context) {
	var req transport.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	leadID, _ := uuid.Parse(req.LeadID)
	noteID, _ := uuid.Parse(req.DoctorNoteID)

	detail, err := h.svc.CreateQuote(c.Request.Context(), service.CreateQuoteParams{
		LeadID:        leadID,
		DoctorNoteID:  noteID,
		Currency:      req.Currency,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Items:         req.Items,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toQuoteResponse(detail))
}

func (h *Handler) HandleGetQuote(c *gin.Context) {
	quoteID, ok := parseIDParam(c, "quoteId")
	if !ok {
		return
	}

	detail, err := h.svc.GetQuote(c.Request.Context(), quoteID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toQuoteResponse(detail))
}

func (h *Handler) HandleListQuotes(c *gin.Context) {
	leadID, ok := parseQueryLeadID(c)
	if !ok {
		return
	}

	quotes, err := h.svc.ListQuotes(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.QuoteResponse, 0, len(quotes))
	for _, quote := range quotes {
		out = append(out, toQuoteSummary(quote))
	}
	httpkit.OK(c, out)
}

func (h *Handler) HandleUpdateQuote(c *gin.Context) {
	quoteID, ok := parseIDParam(c, "quoteId")
	if !ok {
		return
	}

	var req transport.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	detail, err := h.svc.UpdateQuote(c.Request.Context(), quoteID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toQuoteResponse(detail))
}

func (h *Handler) HandleSendQuote(c *gin.Context) {
	quoteID, ok := parseIDParam(c, "quoteId")
	if !ok {
		return
	}

	detail, err := h.svc.SendQuote(c.Request.Context(), quoteID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toQuoteResponse(detail))
}

// =============================================================================
// Helpers
// =============================================================================

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "leadId query parameter required", nil)
		return uuid.Nil, false
	}
	return id, true
}

func toNoteResponse(note repository.DoctorNote) transport.NoteResponse {
	return transport.NoteResponse{
		ID:         note.ID,
		LeadID:     note.LeadID,
		DoctorID:   note.DoctorID,
		Title:      note.Title,
		Content:    note.Content,
		Status:     note.Status,
		ApprovedAt: note.ApprovedAt,
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}
}

func toQuoteSummary(quote repository.Quote) transport.QuoteResponse {
	return transport.QuoteResponse{
		ID:                  quote.ID,
		LeadID:              quote.LeadID,
		DoctorNoteID:        quote.DoctorNoteID,
		Status:              quote.Status,
		Currency:            quote.Currency,
		DiscountType:        quote.DiscountType,
		DiscountValue:       quote.DiscountValue,
		SubtotalCents:       quote.SubtotalCents,
		DiscountAmountCents: quote.DiscountAmountCents,
		TotalCents:          quote.TotalCents,
		SentAt:              quote.SentAt,
		CreatedAt:           quote.CreatedAt,
		UpdatedAt:           quote.UpdatedAt,
	}
}

func toQuoteResponse(detail service.QuoteDetail) transport.QuoteResponse {
	out := toQuoteSummary(detail.Quote)
	out.Items = make([]transport.QuoteItemResponse, 0, len(detail.Items))
	for _, item := range detail.Items {
		out.Items = append(out.Items, transport.QuoteItemResponse{
			ID:             item.ID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
			Position:       item.Position,
		})
	}
	return out
}
